package contract

import "errors"

// 最小错误分类（供上层 errors.Is 判定与 diag.Classify 归类）。
var (
	// ErrInvalidInput: 输入样本或参数不合法（如关系论元不足两个）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfig: 配置错误（不支持的 decoding_format、缺失必需路径等），不可重试。
	ErrConfig = errors.New("config error")
	// ErrEmptySkillFamily: 某个 skill 族为空，无法计算空样本比例。
	ErrEmptySkillFamily = errors.New("empty skill family")
	// ErrNoMergePartner: hard 阶段候选池内没有非空样本。
	ErrNoMergePartner = errors.New("no eligible merge partner")
	// ErrEmptyColumns: 零行无法重建列式存储。
	ErrEmptyColumns = errors.New("empty columns")
	// ErrSchemaInvalid: schema 文件格式错误。
	ErrSchemaInvalid = errors.New("schema invalid")
	// ErrGrammar: 目标串不符合定界语法。
	ErrGrammar = errors.New("record grammar violation")
	// ErrPathInvalid: 工件标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)
