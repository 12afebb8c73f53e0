package marshal

import (
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/rmarshal-go/pkg/log"
	"github.com/lk2023060901/rmarshal-go/pkg/metrics"
	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// Marshal 将 v 编码为带数据头的字节序列。
func Marshal(v Value, opts ...Option) ([]byte, error) {
	o := newOptions(opts...)
	start := time.Now()

	e := newEncodeState(o)
	defer e.release()
	err := e.dump(v)
	observeSession(metrics.DumpLabel, start, e.out.len(), e.links.len(), err, o)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), e.out.bytes()...), nil
}

// Unmarshal 解码 data 中的第一个值，之后的字节被忽略。
func Unmarshal(data []byte, opts ...Option) (Value, error) {
	o := newOptions(opts...)
	start := time.Now()

	d := newDecodeState(newBytesSource(data), o)
	v, err := d.load()
	observeSession(metrics.LoadLabel, start, int(d.in.Offset()), d.links.len(), err, o)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Encoder 将值依次编码写入 io.Writer，每个值各自带数据头并使用独立的引用表。
type Encoder struct {
	log.Binder

	w    io.Writer
	opts []Option
}

// NewEncoder 创建写入 w 的 Encoder。
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	enc := &Encoder{w: w, opts: opts}
	enc.SetLogger(newOptions(opts...).logger)
	return enc
}

// Encode 编码 v 并写入底层 io.Writer。编码失败时不写入任何字节。
func (enc *Encoder) Encode(v Value) error {
	o := newOptions(append(enc.opts, WithLogger(enc.Logger()))...)
	start := time.Now()

	e := newEncodeState(o)
	defer e.release()
	err := e.dump(v)
	if err == nil {
		if _, werr := enc.w.Write(e.out.bytes()); werr != nil {
			err = merr.WrapErrIoFailed("marshal sink", werr)
		}
	}
	observeSession(metrics.DumpLabel, start, e.out.len(), e.links.len(), err, o)
	return err
}

// Decoder 从 io.Reader 中依次解码值，相邻的值可以首尾相接。
type Decoder struct {
	log.Binder

	src  *readerSource
	opts []Option
}

// NewDecoder 创建读取 r 的 Decoder。Decoder 内部带缓冲，可能读取超出当前值的字节。
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	dec := &Decoder{src: newReaderSource(r), opts: opts}
	dec.SetLogger(newOptions(opts...).logger)
	return dec
}

// Decode 读取下一个值。流已结束时返回 io.EOF。
func (dec *Decoder) Decode() (Value, error) {
	if _, err := dec.src.r.Peek(1); err == io.EOF {
		return nil, io.EOF
	}
	o := newOptions(append(dec.opts, WithLogger(dec.Logger()))...)
	start := time.Now()
	offset := dec.src.Offset()

	d := newDecodeState(dec.src, o)
	v, err := d.load()
	observeSession(metrics.LoadLabel, start, int(dec.src.Offset()-offset), d.links.len(), err, o)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func observeSession(op string, start time.Time, size, links int, err error, o *options) {
	elapsed := time.Since(start)
	status := metrics.SuccessLabel
	if err != nil {
		status = metrics.FailLabel
		metrics.MarshalErrorTotal.WithLabelValues(op, strconv.Itoa(int(merr.Code(err)))).Inc()
	}
	metrics.MarshalSessionTotal.WithLabelValues(op, status).Inc()
	metrics.MarshalSessionLatency.WithLabelValues(op).Observe(float64(elapsed.Microseconds()) / 1000)
	metrics.MarshalSessionBytes.WithLabelValues(op).Observe(float64(size))
	metrics.MarshalLinkEntries.WithLabelValues(op).Observe(float64(links))

	if err != nil {
		logger := o.logger.With(o.fields()...)
		fields := []zap.Field{
			log.FieldOperation(op),
			zap.Int("bytes", size),
			zap.Int("links", links),
			zap.Stringer("errorType", merr.GetErrorType(err)),
			zap.Error(err),
		}
		// 输入错误可能被外部大量触发，限流输出；其余错误总是输出。
		if merr.GetErrorType(err) == merr.InputError {
			logger.RatedWarn(1, "marshal session failed", fields...)
		} else {
			logger.Warn("marshal session failed", fields...)
		}
		return
	}
	if !o.logger.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	o.logger.RatedDebug(1, "marshal session finished",
		log.FieldOperation(op),
		zap.Int("bytes", size),
		zap.Int("links", links),
		zap.Duration("elapsed", elapsed))
}
