// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
// WARN: 当前阶段请勿在新代码中直接使用该方法。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case zeusError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

// GetErrorType 返回错误的类别，非 merr 错误视为 SystemError。
func GetErrorType(err error) ErrorType {
	if merr, ok := errors.Cause(err).(zeusError); ok {
		return merr.errType
	}

	return SystemError
}

func WrapErrServiceInternal(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrServiceInternal, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// IO 相关错误封装。
func WrapErrIoFailed(key string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrIoFailed, err.Error(), value("key", key))
}

func WrapErrIoUnexpectEOF(key string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrIoUnexpectEOF, err.Error(), value("key", key))
}

// 参数相关错误封装。
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidRange[T any](lower, upper, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		bound("value", actual, lower, upper),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmt string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmt, args...)
}

func WrapErrParameterMissing[T any](param T, msg ...string) error {
	err := wrapFields(ErrParameterMissing,
		value("missing_param", param),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Marshal 相关错误封装。
func WrapErrMarshalMalformed(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrMarshalMalformed, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// WrapErrMarshalMalformedf 以格式化原因包装 ErrMarshalMalformed。
func WrapErrMarshalMalformedf(format string, args ...any) error {
	return wrapFieldsWithDesc(ErrMarshalMalformed, fmt.Sprintf(format, args...))
}

func WrapErrMarshalUnexpectedTag(tag byte, offset int64) error {
	return wrapFieldsWithDesc(ErrMarshalMalformed, "unknown type tag",
		value("tag", fmt.Sprintf("0x%02x", tag)),
		value("offset", offset),
	)
}

func WrapErrMarshalUnlinked(kind string, index, size int64) error {
	return wrapFieldsWithDesc(ErrMarshalMalformed, "dangling reference",
		value("table", kind),
		bound("index", index, 0, size-1),
	)
}

func WrapErrMarshalUnsupported(typeName string, msg ...string) error {
	err := wrapFields(ErrMarshalUnsupported, value("type", typeName))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrMarshalDepthExceeded(limit int, msg ...string) error {
	err := wrapFields(ErrMarshalDepthExceeded, value("limit", limit))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrMarshalVersionMismatch(expected, actual string, msg ...string) error {
	err := wrapFields(ErrMarshalVersionMismatch,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrMarshalHookContract(class string, reason string) error {
	return wrapFieldsWithDesc(ErrMarshalHookContract, reason, value("class", class))
}

// WrapErrMarshalHookFailed 包装钩子自身返回的错误，保留原始错误链。
func WrapErrMarshalHookFailed(class string, hook string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "marshal: %s hook failed for class %s", hook, class)
}

func WrapErrMarshalUndefinedClass(name string, msg ...string) error {
	err := wrapFields(ErrMarshalUndefinedClass, value("class", name))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Stream 相关错误封装。
func WrapErrStreamFrame(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrStreamFrame, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrStreamTooLarge(size, limit int, msg ...string) error {
	err := wrapFields(ErrStreamTooLarge, bound("size", size, 0, limit))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrStreamCrypto(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrStreamCrypto, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err zeusError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	return err
}

func wrapFieldsWithDesc(err zeusError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}
