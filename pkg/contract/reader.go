package contract

import (
	"context"
	"io"
)

// Reader: 分区文件的字节流来源（文件 / STDIN）。
// 约束：
// 1) 按给定顺序逐个回调；
// 2) 不做解析，仅提供字节流；
// 3) 不在内部起并发。
type Reader interface {
	Open(ctx context.Context, path string, yield func(fileID FileID, r io.ReadCloser) error) error
}
