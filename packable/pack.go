package packable

import (
	"fmt"

	"github.com/quickwritereader/PackGraph/access"
	"github.com/quickwritereader/PackGraph/schema"
	"github.com/quickwritereader/PackGraph/scheme"
	"github.com/quickwritereader/PackGraph/types"
)

// noIdentifier in EncodeOptions.FileIdentifier suppresses the schema's
// identifier.
const noIdentifier = "-"

type boundRecord struct {
	schema *schema.Schema
	rec    *types.Record
}

// Bind adapts rec to access.Packable, so records can be mixed with tables
// written by hand into the same builder.
func Bind(s *schema.Schema, rec *types.Record) access.Packable {
	return boundRecord{schema: s, rec: rec}
}

func (b boundRecord) PackInto(p *access.PutAccess) (int, error) {
	return scheme.NewEncoder(b.schema, p).Encode(b.rec)
}

// Pack encodes rec and everything reachable from it as a finished buffer.
func Pack(s *schema.Schema, rec *types.Record, opts scheme.EncodeOptions) ([]byte, error) {
	var p *access.PutAccess
	if opts.InitialSize > 0 {
		p = access.NewPutAccess(opts.InitialSize)
	} else {
		p = access.GetPutAccess()
		defer access.ReleasePutAccess(p)
	}
	p.ForceDefaults(opts.ForceDefaults)

	root, err := p.AddPackable(Bind(s, rec))
	if err != nil {
		return nil, fmt.Errorf("Pack: %w", err)
	}

	var finish []access.FinishOption
	id := s.FileIdentifier
	if opts.FileIdentifier != "" {
		id = opts.FileIdentifier
	}
	if id != "" && id != noIdentifier {
		finish = append(finish, access.WithFileIdentifier(id))
	}
	if opts.SizePrefix {
		finish = append(finish, access.WithSizePrefix())
	}
	if err := p.Finish(root, finish...); err != nil {
		return nil, fmt.Errorf("Pack: %w", err)
	}
	return p.CopyBytes(), nil
}

// PackSizePrefixed is Pack with a 4-byte size prefix.
func PackSizePrefixed(s *schema.Schema, rec *types.Record, opts scheme.EncodeOptions) ([]byte, error) {
	opts.SizePrefix = true
	return Pack(s, rec, opts)
}

// Unpacked is a decoded root together with the session that produced it.
type Unpacked struct {
	Root   *types.Record
	Access *access.GetAccess
}

// Unpack decodes the root record of buf.
func Unpack(s *schema.Schema, buf []byte, opts ...access.Option) (*types.Record, error) {
	u, err := UnpackSession(s, buf, opts...)
	if err != nil {
		return nil, err
	}
	return u.Root, nil
}

// UnpackSession decodes buf and keeps its decode session for UnpackContinue.
func UnpackSession(s *schema.Schema, buf []byte, opts ...access.Option) (*Unpacked, error) {
	return unpack(s, access.NewGetAccess(buf, opts...))
}

// UnpackSizePrefixed decodes a buffer written by PackSizePrefixed.
func UnpackSizePrefixed(s *schema.Schema, buf []byte, opts ...access.Option) (*types.Record, error) {
	g, err := access.NewGetAccessSizePrefixed(buf, opts...)
	if err != nil {
		return nil, fmt.Errorf("Unpack: %w", err)
	}
	u, err := unpack(s, g)
	if err != nil {
		return nil, err
	}
	return u.Root, nil
}

// UnpackContinue decodes a related buffer reusing prev's interned strings,
// and its uid registry when access.WithSharedUIDs is given.
func UnpackContinue(prev *Unpacked, s *schema.Schema, buf []byte, opts ...access.Option) (*Unpacked, error) {
	g := access.NewGetAccess(buf, opts...)
	if prev != nil {
		g.ContinueFrom(prev.Access)
	}
	return unpack(s, g)
}

func unpack(s *schema.Schema, g *access.GetAccess) (*Unpacked, error) {
	root, err := scheme.NewDecoder(s, g).DecodeRoot()
	if err != nil {
		return nil, fmt.Errorf("Unpack: %w", err)
	}
	return &Unpacked{Root: root, Access: g}, nil
}

// HasIdentifier reports whether buf carries the schema's file identifier.
func HasIdentifier(s *schema.Schema, buf []byte) (bool, error) {
	return access.WrapByteBuffer(buf).HasIdentifier(s.FileIdentifier)
}
