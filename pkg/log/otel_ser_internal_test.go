package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestToAttributes(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want []attribute.KeyValue
	}{
		{
			name: "empty",
			in:   nil,
			want: []attribute.KeyValue{},
		},
		{
			name: "typed values",
			in:   []any{"method", "getBalance", "size", 32, "ok", true, "id", uint64(7), "err", errors.New("boom")},
			want: []attribute.KeyValue{
				attribute.String("method", "getBalance"),
				attribute.Int("size", 32),
				attribute.Bool("ok", true),
				attribute.String("id", "7"),
				attribute.String("err", "boom"),
			},
		},
		{
			name: "dangling key",
			in:   []any{"a", "b", "c"},
			want: []attribute.KeyValue{
				attribute.String("a", "b"),
				attribute.String("c", "MISSING"),
			},
		},
		{
			name: "non-string key",
			in:   []any{1, "x", "y", 2},
			want: []attribute.KeyValue{
				attribute.String("invalidKeysAndValues", "[1 x y 2]"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toAttributes(tt.in))
		})
	}
}
