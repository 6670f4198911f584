package contract

import (
	"path"
	"strings"
)

// FileID: 输入文件的逻辑标识（规范化路径，跨平台一致）。
type FileID string

// NormalizeFileID 统一为正斜杠并清理 . / .. 片段；不做隐式绝对化。
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}
