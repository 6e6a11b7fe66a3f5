package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordSchema 约束回放文件里的每条信号记录：
// 时间戳必填，概率（若有）必须落在 [0,1]。
const recordSchema = `{
  "type": "object",
  "required": ["ts"],
  "properties": {
    "ts": {"type": "integer", "minimum": 0},
    "probs": {
      "type": "object",
      "required": ["p_down", "p_hold", "p_up"],
      "properties": {
        "p_down": {"type": "number", "minimum": 0, "maximum": 1},
        "p_hold": {"type": "number", "minimum": 0, "maximum": 1},
        "p_up": {"type": "number", "minimum": 0, "maximum": 1}
      }
    },
    "ma": {
      "type": "object",
      "required": ["ma_short", "ma_long"],
      "properties": {
        "ma_short": {"type": "number"},
        "ma_long": {"type": "number"}
      }
    },
    "action": {"type": "number"}
  }
}`

var compiledRecordSchema = mustCompileSchema(recordSchema)

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("signal_record.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("signal_record.json")
}

// LoadFile 读取 JSON 数组形式的预计算信号文件。
// 任一记录不合法时整个加载失败并带上位置信息。
func LoadFile(path string) ([]Signal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signal file failed: %w", err)
	}
	return Parse(raw)
}

// Parse 解析并校验信号记录数组。
func Parse(raw []byte) ([]Signal, error) {
	var generic []any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("signal file must be a JSON array: %w", err)
	}
	for i, rec := range generic {
		if err := compiledRecordSchema.Validate(rec); err != nil {
			return nil, fmt.Errorf("signal record #%d invalid: %w", i+1, err)
		}
	}
	var signals []Signal
	if err := json.Unmarshal(raw, &signals); err != nil {
		return nil, fmt.Errorf("decode signal records failed: %w", err)
	}
	return signals, nil
}

// SliceProvider 按序回放内存中的信号，实现 Provider。
type SliceProvider struct {
	signals []Signal
	pos     int
}

func NewSliceProvider(signals []Signal) *SliceProvider {
	return &SliceProvider{signals: signals}
}

func (p *SliceProvider) Next(_ context.Context) (Signal, bool, error) {
	if p.pos >= len(p.signals) {
		return Signal{}, false, nil
	}
	sig := p.signals[p.pos]
	p.pos++
	return sig, true, nil
}
