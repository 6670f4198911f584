package contract

import (
	"context"
	"io"
)

// Encoder: 将一个分区的列式结果编码为可写出的字节流。
type Encoder interface {
	Encode(ctx context.Context, split Split, cols Columns) (io.Reader, error)
	// Ext 返回工件扩展名（含点），用于推导输出名。
	Ext() string
}
