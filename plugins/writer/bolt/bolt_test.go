package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2h/pkg/contract"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := New(&Options{Path: filepath.Join(t.TempDir(), "out", "e2h.db"), TimeoutSeconds: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func lines(t *testing.T, s *Store, id contract.ArtifactID) []string {
	t.Helper()
	var out []string
	var want uint64
	require.NoError(t, s.Rows(id, func(i uint64, line []byte) error {
		assert.Equal(t, want, i)
		want++
		out = append(out, string(line))
		return nil
	}))
	return out
}

func TestWriteAndReplace(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "train.json", strings.NewReader("{\"a\":1}\n\n{\"a\":2}\n{\"a\":3}")))
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`, `{"a":3}`}, lines(t, s, "train.json"))

	// 再次写入完整替换
	require.NoError(t, s.Write(ctx, "train.json", strings.NewReader("x\n")))
	assert.Equal(t, []string{"x"}, lines(t, s, "train.json"))

	require.NoError(t, s.Write(ctx, "test.json", strings.NewReader("")))
	assert.Empty(t, lines(t, s, "test.json"))
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

// 读失败时事务回滚，旧内容保留
func TestWriteRollback(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "dev.json", strings.NewReader("keep\n")))
	assert.Error(t, s.Write(ctx, "dev.json", failReader{}))
	assert.Equal(t, []string{"keep"}, lines(t, s, "dev.json"))
}

func TestWriteErrors(t *testing.T) {
	s := open(t)
	assert.ErrorIs(t, s.Write(context.Background(), " ", strings.NewReader("x")), contract.ErrPathInvalid)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Write(ctx, "a", strings.NewReader("x")), context.Canceled)

	err := s.Rows("missing", func(uint64, []byte) error { return nil })
	assert.ErrorIs(t, err, contract.ErrPathInvalid)

	_, err = New(&Options{})
	assert.ErrorIs(t, err, contract.ErrConfig)
	_, err = New(nil)
	assert.ErrorIs(t, err, contract.ErrConfig)
}

func TestRowKeyOrder(t *testing.T) {
	assert.Less(t, string(rowKey(9)), string(rowKey(10)))
	assert.Len(t, rowKey(0), 8)
}
