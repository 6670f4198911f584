package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// 数据位于 ./data/uie，Writer 输出到 ./out；选项包含全部键并给出中性默认值。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Data = Data{
		TrainFile:      "data/uie/train.json",
		ValidationFile: "data/uie/val.json",
		TestFile:       "data/uie/test.json",
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git"],
  "allow_exts": [".json"]
}`)
	cfg.Options.Parser = json.RawMessage(`{
  "strict": false,
  "verify_record": false
}`)
	cfg.Options.Encoder = json.RawMessage(`{
  "escape_html": false,
  "ext": ".json"
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "overwrite": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
