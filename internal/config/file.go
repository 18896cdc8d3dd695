package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func readFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Msg: "config file not found: " + path}
		}
		return nil, &Error{Msg: fmt.Sprintf("read %s: %v", path, err)}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(b)
	default:
		return parseKeyValue(b)
	}
}

// parseKeyValue reads shell-style KEY=VALUE lines. Blank lines and
// comments are skipped, surrounding quotes are removed and an inline
// comment is dropped when the line carries no quotes.
func parseKeyValue(b []byte) (map[string]string, error) {
	out := map[string]string{}
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, "#") && !strings.ContainsAny(line, `"'`) {
			line = strings.TrimSpace(strings.SplitN(line, "#", 2)[0])
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(k), "export "))
		out[k] = unquote(strings.TrimSpace(v))
	}
	if err := s.Err(); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("parse config: %v", err)}
	}
	return out, nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' || first == '\'') && first == last {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// parseYAML accepts a flat mapping using the same keys as the conf file.
func parseYAML(b []byte) (map[string]string, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("parse yaml config: %v", err)}
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case nil:
			continue
		case map[string]any, []any:
			return nil, &Error{Key: k, Msg: "nested values are not supported"}
		default:
			out[strings.ToUpper(k)] = fmt.Sprint(tv)
		}
	}
	return out, nil
}
