// Package bolt 将编码后的分区逐行写入 bbolt 嵌入式数据库：每个工件一个 bucket，
// 键为 8 字节大端行号，值为该行字节。
package bolt

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"e2h/pkg/contract"
)

// Options 为 bolt Writer 配置。
type Options struct {
	// Path: 数据库文件路径（必需）。
	Path string `json:"path"`
	// TimeoutSeconds: 获取文件锁的超时；<=0 使用 5 秒。
	TimeoutSeconds int `json:"timeout_seconds"`
	// MaxLineBytes: 单行上限；<=0 使用 64MiB。
	MaxLineBytes int `json:"max_line_bytes"`
}

// Store 实现 contract.Writer，并持有打开的数据库句柄。
type Store struct {
	db      *bbolt.DB
	maxLine int
}

// New 打开（或创建）数据库文件。
func New(opts *Options) (*Store, error) {
	if opts == nil || strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("%w: bolt writer requires path", contract.ErrConfig)
	}
	timeout := 5 * time.Second
	if opts.TimeoutSeconds > 0 {
		timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}
	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = 64 * 1024 * 1024
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(opts.Path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, maxLine: maxLine}, nil
}

var _ contract.Writer = (*Store)(nil)

// Write 在单个事务中替换 id 对应的 bucket；失败时整体回滚。
func (s *Store) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := []byte(strings.TrimSpace(string(id)))
	if len(name) == 0 {
		return contract.ErrPathInvalid
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), s.maxLine)
		var n uint64
		for sc.Scan() {
			if n%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}
			// Put 要求值在事务内保持有效，Scanner 会复用缓冲
			val := make([]byte, len(line))
			copy(val, line)
			if err := b.Put(rowKey(n), val); err != nil {
				return err
			}
			n++
		}
		return sc.Err()
	})
}

// Rows 按行号顺序遍历 id 对应的 bucket；bucket 不存在时返回 ErrPathInvalid。
func (s *Store) Rows(id contract.ArtifactID, fn func(i uint64, line []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(id))
		if b == nil {
			return fmt.Errorf("%w: bucket %q not found", contract.ErrPathInvalid, id)
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(binary.BigEndian.Uint64(k), v)
		})
	})
}

// Close 关闭数据库。
func (s *Store) Close() error { return s.db.Close() }

func rowKey(i uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, i)
	return k
}
