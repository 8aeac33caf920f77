package ordinals

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/bitfsorg/libmarket-go/tx"
)

// InscriptionTag marks an ord envelope.
var InscriptionTag = []byte("ord")

// MaxContentTypeLen bounds the content-type field.
const MaxContentTypeLen = 255

// Inscription is the content carried by a 1-sat ordinal output.
type Inscription struct {
	ContentType string
	Content     []byte
}

// BuildInscription returns a P2PKH script to address followed by the
// envelope:
//
//	OP_FALSE OP_IF "ord" OP_1 <content-type> OP_0 <content> OP_ENDIF
func BuildInscription(address string, ins *Inscription) ([]byte, error) {
	if ins == nil {
		return nil, fmt.Errorf("%w: nil inscription", ErrInvalidContent)
	}
	if ins.ContentType == "" || len(ins.ContentType) > MaxContentTypeLen {
		return nil, fmt.Errorf("%w: content type length %d", ErrInvalidContent, len(ins.ContentType))
	}
	if len(ins.Content) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidContent)
	}

	lock, err := tx.BuildP2PKHLock(address)
	if err != nil {
		return nil, err
	}
	s := script.NewFromBytes(lock)
	if err := s.AppendOpcodes(script.OpFALSE, script.OpIF); err != nil {
		return nil, fmt.Errorf("%w: %w", tx.ErrScriptBuild, err)
	}
	if err := s.AppendPushData(InscriptionTag); err != nil {
		return nil, fmt.Errorf("%w: %w", tx.ErrScriptBuild, err)
	}
	if err := s.AppendOpcodes(script.Op1); err != nil {
		return nil, fmt.Errorf("%w: %w", tx.ErrScriptBuild, err)
	}
	if err := s.AppendPushData([]byte(ins.ContentType)); err != nil {
		return nil, fmt.Errorf("%w: %w", tx.ErrScriptBuild, err)
	}
	if err := s.AppendOpcodes(script.Op0); err != nil {
		return nil, fmt.Errorf("%w: %w", tx.ErrScriptBuild, err)
	}
	if err := s.AppendPushData(ins.Content); err != nil {
		return nil, fmt.Errorf("%w: %w", tx.ErrScriptBuild, err)
	}
	if err := s.AppendOpcodes(script.OpENDIF); err != nil {
		return nil, fmt.Errorf("%w: %w", tx.ErrScriptBuild, err)
	}
	return []byte(*s), nil
}

// ParseInscription extracts the envelope from an inscription script.
func ParseInscription(lock []byte) (*Inscription, error) {
	chunks, err := script.NewFromBytes(lock).Chunks()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotInscription, err)
	}
	for i := 0; i+7 < len(chunks); i++ {
		if chunks[i].Op != script.OpFALSE {
			continue
		}
		c := chunks[i:]
		if c[1].Op != script.OpIF || string(c[2].Data) != string(InscriptionTag) ||
			c[3].Op != script.Op1 || c[5].Op != script.Op0 || c[7].Op != script.OpENDIF {
			continue
		}
		if len(c[4].Data) == 0 {
			return nil, fmt.Errorf("%w: empty content type", ErrInvalidContent)
		}
		return &Inscription{ContentType: string(c[4].Data), Content: c[6].Data}, nil
	}
	return nil, ErrNotInscription
}
