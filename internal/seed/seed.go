// Package seed builds event indexes from newline-delimited JSON, one event
// object per line.
package seed

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/arkilian/trackport/internal/index"
	"github.com/arkilian/trackport/internal/storage"
	"github.com/arkilian/trackport/pkg/types"
	"github.com/valyala/fastjson"
)

// DefaultCommitEvery is the number of events per index transaction.
const DefaultCommitEvery = 5000

const maxLineSize = 4 << 20

// Adder receives parsed events. *index.Writer satisfies it.
type Adder interface {
	Add(ctx context.Context, fields []types.Field) (int, error)
	Commit(ctx context.Context) error
}

var _ Adder = (*index.Writer)(nil)

// ParseEvent converts one JSON object into fields, in member order.
// Strings are taken as is, numbers and booleans by their JSON text, nulls are
// dropped and arrays yield one field per element. Facet members may be a
// {"Key","Value"} object or an array of them.
func ParseEvent(p *fastjson.Parser, line []byte) ([]types.Field, error) {
	v, err := p.ParseBytes(line)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("event must be an object: %w", err)
	}

	var (
		fields   []types.Field
		visitErr error
	)
	obj.Visit(func(key []byte, member *fastjson.Value) {
		if visitErr != nil {
			return
		}
		name := string(key)
		if member.Type() == fastjson.TypeArray {
			for _, el := range member.GetArray() {
				value, ok, err := scalar(name, el)
				if err != nil {
					visitErr = err
					return
				}
				if ok {
					fields = append(fields, types.Field{Name: name, Value: value})
				}
			}
			return
		}
		value, ok, err := scalar(name, member)
		if err != nil {
			visitErr = err
			return
		}
		if ok {
			fields = append(fields, types.Field{Name: name, Value: value})
		}
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return fields, nil
}

func scalar(name string, v *fastjson.Value) (string, bool, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return "", false, nil
	case fastjson.TypeString:
		return string(v.GetStringBytes()), true, nil
	case fastjson.TypeNumber, fastjson.TypeTrue, fastjson.TypeFalse:
		return v.String(), true, nil
	case fastjson.TypeObject:
		if name != types.FieldFacet {
			return "", false, fmt.Errorf("field %s: objects are only allowed for %s", name, types.FieldFacet)
		}
		f, err := types.ParseFacet(v.String())
		if err != nil {
			return "", false, fmt.Errorf("field %s: %w", name, err)
		}
		return f.Encode(), true, nil
	default:
		return "", false, fmt.Errorf("field %s: nested %s not supported", name, v.Type())
	}
}

// Load reads events from r and adds them to w, committing every commitEvery
// events. Blank lines are ignored. It returns the number of events added.
func Load(ctx context.Context, r io.Reader, w Adder, commitEvery int) (int, error) {
	if commitEvery <= 0 {
		commitEvery = DefaultCommitEvery
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		p     fastjson.Parser
		added int
		line  int
	)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return added, err
		}

		fields, err := ParseEvent(&p, raw)
		if err != nil {
			return added, fmt.Errorf("seed: line %d: %w", line, err)
		}
		if _, err := w.Add(ctx, fields); err != nil {
			return added, fmt.Errorf("seed: line %d: %w", line, err)
		}
		added++

		if added%commitEvery == 0 {
			if err := w.Commit(ctx); err != nil {
				return added, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("seed: read input: %w", err)
	}
	return added, w.Commit(ctx)
}

// ErrSourceExists is returned by Publish when the source already holds an
// index and replace is not set.
var ErrSourceExists = errors.New("seed: source already holds an index")

// Publish uploads the index built in buildDir as source's index object and
// returns the object path. An existing index is only overwritten when
// replace is set.
func Publish(ctx context.Context, store storage.ObjectStorage, buildDir, source string, replace bool) (string, error) {
	objectPath := path.Join(source, index.FileName)
	if !replace {
		exists, err := store.Exists(ctx, objectPath)
		if err != nil {
			return objectPath, fmt.Errorf("seed: check %s: %w", objectPath, err)
		}
		if exists {
			return objectPath, fmt.Errorf("%w: %s", ErrSourceExists, objectPath)
		}
	}
	if err := store.Upload(ctx, index.Path(buildDir), objectPath); err != nil {
		return objectPath, err
	}
	return objectPath, nil
}
