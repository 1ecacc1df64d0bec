package escrow

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/yourusername/race-escrow/internal/models"
)

// Layout: discriminator(8) + race_id(4 LE len + up to 50) + token_mint(32) +
// entry_fee(u64) + participant_one(32) + participant_two(1+32) + status(1) +
// result_one(1+48) + result_two(1+48) + winner(1+32) + escrow_amount(u64) +
// created_at(i64) + bump(1). Options are Borsh: the payload follows only when
// the flag is 1, and unused space stays zero at the end of the account.
const (
	discriminatorSize = 8
	raceIDCapacity    = 50
	pubkeySize        = 32
	resultSize        = 8 + 8 + 32

	RaceAccountSpace = discriminatorSize +
		4 + raceIDCapacity +
		pubkeySize +
		8 +
		pubkeySize +
		1 + pubkeySize +
		1 +
		1 + resultSize +
		1 + resultSize +
		1 + pubkeySize +
		8 +
		8 +
		1
)

// raceDiscriminator tags race accounts, sha256("account:Race")[:8].
var raceDiscriminator = func() [discriminatorSize]byte {
	var d [discriminatorSize]byte
	sum := sha256.Sum256([]byte("account:Race"))
	copy(d[:], sum[:discriminatorSize])
	return d
}()

// EncodeRace serializes a race into a RaceAccountSpace-sized buffer
func EncodeRace(r *models.Race) ([]byte, error) {
	if len(r.RaceID) > raceIDCapacity {
		return nil, fmt.Errorf("%w: race id is %d bytes", ErrLayout, len(r.RaceID))
	}
	if !r.Status.Valid() {
		return nil, fmt.Errorf("%w: status %d", ErrLayout, r.Status)
	}

	w := &recordWriter{buf: make([]byte, RaceAccountSpace)}
	w.bytes(raceDiscriminator[:])
	w.u32(uint32(len(r.RaceID)))
	w.bytes([]byte(r.RaceID))
	w.bytes(r.TokenMint.Bytes())
	w.u64(r.EntryFee)
	w.bytes(r.ParticipantOne.Bytes())
	w.optionalKey(r.ParticipantTwo)
	w.u8(uint8(r.Status))
	w.optionalResult(r.ResultOne)
	w.optionalResult(r.ResultTwo)
	w.optionalKey(r.Winner)
	w.u64(r.EscrowAmount)
	w.u64(uint64(r.CreatedAt))
	w.u8(r.Bump)

	return w.buf, nil
}

// DecodeRace parses a race account's data
func DecodeRace(data []byte) (*models.Race, error) {
	if len(data) != RaceAccountSpace {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrLayout, RaceAccountSpace, len(data))
	}
	if [discriminatorSize]byte(data[:discriminatorSize]) != raceDiscriminator {
		return nil, ErrDiscriminatorMismatch
	}

	rd := &recordReader{buf: data, off: discriminatorSize}
	r := &models.Race{}

	idLen := rd.u32()
	if idLen > raceIDCapacity {
		return nil, fmt.Errorf("%w: race id length %d", ErrLayout, idLen)
	}
	r.RaceID = string(rd.bytes(int(idLen)))
	r.TokenMint = rd.key()
	r.EntryFee = rd.u64()
	r.ParticipantOne = rd.key()
	r.ParticipantTwo = rd.optionalKey()
	r.Status = models.RaceStatus(rd.u8())
	r.ResultOne = rd.optionalResult()
	r.ResultTwo = rd.optionalResult()
	r.Winner = rd.optionalKey()
	r.EscrowAmount = rd.u64()
	r.CreatedAt = int64(rd.u64())
	r.Bump = rd.u8()

	if rd.err != nil {
		return nil, rd.err
	}
	if !r.Status.Valid() {
		return nil, fmt.Errorf("%w: status %d", ErrLayout, r.Status)
	}
	return r, nil
}

// DecodeRaceAccount checks ownership before decoding, so that data planted in
// an account the program does not own is never trusted.
func DecodeRaceAccount(programID solana.PublicKey, acct *Account) (*models.Race, error) {
	if !acct.Owner.Equals(programID) {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrAccountNotOwned, acct.Address, acct.Owner)
	}
	return DecodeRace(acct.Data)
}

// IsRaceAccount reports whether data carries the race discriminator
func IsRaceAccount(data []byte) bool {
	return len(data) == RaceAccountSpace && [discriminatorSize]byte(data[:discriminatorSize]) == raceDiscriminator
}

type recordWriter struct {
	buf []byte
	off int
}

func (w *recordWriter) bytes(b []byte) {
	w.off += copy(w.buf[w.off:], b)
}

func (w *recordWriter) u8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *recordWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *recordWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *recordWriter) optionalKey(k *solana.PublicKey) {
	if k == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.bytes(k.Bytes())
}

func (w *recordWriter) optionalResult(r *models.RaceResult) {
	if r == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.u64(r.FinishTimeMs)
	w.u64(r.CoinsCollected)
	w.bytes(r.InputHash[:])
}

// recordReader stops at the first error; later reads return zero values.
type recordReader struct {
	buf []byte
	off int
	err error
}

func (r *recordReader) bytes(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: read past end at offset %d", ErrLayout, r.off)
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *recordReader) u8() uint8 {
	return r.bytes(1)[0]
}

func (r *recordReader) u32() uint32 {
	return binary.LittleEndian.Uint32(r.bytes(4))
}

func (r *recordReader) u64() uint64 {
	return binary.LittleEndian.Uint64(r.bytes(8))
}

func (r *recordReader) key() solana.PublicKey {
	return solana.PublicKeyFromBytes(r.bytes(pubkeySize))
}

func (r *recordReader) flag() bool {
	switch f := r.u8(); f {
	case 0:
		return false
	case 1:
		return true
	default:
		if r.err == nil {
			r.err = fmt.Errorf("%w: option flag %d at offset %d", ErrLayout, f, r.off-1)
		}
		return false
	}
}

func (r *recordReader) optionalKey() *solana.PublicKey {
	if !r.flag() {
		return nil
	}
	k := r.key()
	return &k
}

func (r *recordReader) optionalResult() *models.RaceResult {
	if !r.flag() {
		return nil
	}
	res := &models.RaceResult{
		FinishTimeMs:   r.u64(),
		CoinsCollected: r.u64(),
	}
	copy(res.InputHash[:], r.bytes(32))
	return res
}
