package metadata

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
)

const schemaFile = "metadata.proto"

// SchemaPackage is the protobuf package of every metadata message.
const SchemaPackage = "stratum.metadata"

//go:embed metadata.proto
var schemaSource string

var (
	schemaOnce sync.Once
	schema     *desc.FileDescriptor
	schemaErr  error
)

// Schema parses the embedded metadata.proto once and returns its file
// descriptor.
func Schema() (*desc.FileDescriptor, error) {
	schemaOnce.Do(func() {
		parser := protoparse.Parser{
			Accessor: protoparse.FileContentsFromMap(map[string]string{schemaFile: schemaSource}),
		}
		fds, err := parser.ParseFiles(schemaFile)
		if err != nil {
			schemaErr = fmt.Errorf("metadata: parse schema: %w", err)
			return
		}
		schema = fds[0]
	})
	return schema, schemaErr
}

// MessageDescriptor looks up a schema message by its short name, e.g.
// "Class" or "Type.Argument".
func MessageDescriptor(name string) (*desc.MessageDescriptor, error) {
	fd, err := Schema()
	if err != nil {
		return nil, err
	}
	md := fd.FindMessage(SchemaPackage + "." + name)
	if md == nil {
		return nil, fmt.Errorf("metadata: no message %q in schema", name)
	}
	return md, nil
}

// Dump renders a payload as indented JSON through the schema. It does not
// depend on the Go codec, so it also shows fields the codec ignores.
func Dump(kind EntryKind, payload []byte) ([]byte, error) {
	name := "Class"
	if kind == EntryPackage {
		name = "Package"
	}
	md, err := MessageDescriptor(name)
	if err != nil {
		return nil, err
	}
	msg := dynamic.NewMessage(md)
	if err := msg.Unmarshal(payload); err != nil {
		return nil, fmt.Errorf("metadata: dump %s: %w", name, err)
	}
	out, err := msg.MarshalJSONIndent()
	if err != nil {
		return nil, fmt.Errorf("metadata: dump %s: %w", name, err)
	}
	return out, nil
}
