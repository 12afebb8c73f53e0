package log

import (
	"bytes"

	"go.uber.org/zap/zaptest"
)

// testingWriter 把日志逐行转发给 t.Logf，failOnWrite 为 true 时同时标记测试失败。
type testingWriter struct {
	t           zaptest.TestingT
	failOnWrite bool
}

func (w testingWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte{'\n'}) {
		w.t.Logf("%s", line)
	}
	if w.failOnWrite {
		w.t.Fail()
	}
	return len(p), nil
}

func (testingWriter) Sync() error {
	return nil
}
