package contract

import (
	"context"
	"io"
)

// Parser: 将单个分区字节流解析为有序 Record 序列。
// 约束：保持输入顺序；不做业务性清洗；出错时返回带行号的错误。
type Parser interface {
	Parse(ctx context.Context, fileID FileID, r io.Reader) ([]Record, error)
}
