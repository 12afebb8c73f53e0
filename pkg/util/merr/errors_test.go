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
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrMarshalMalformed("marshal data too short")
	errors.Wrap(err, "failed to load value")
	s.ErrorIs(err, ErrMarshalMalformed)
	s.Equal(Code(ErrMarshalMalformed), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))

	sameCodeErr := newZeusError("new error", ErrMarshalMalformed.errCode)
	s.True(sameCodeErr.Is(ErrMarshalMalformed))
}

func (s *ErrSuite) TestWrap() {
	// IO 相关错误。
	s.ErrorIs(WrapErrIoFailed("test_key", os.ErrClosed), ErrIoFailed)
	s.ErrorIs(WrapErrIoUnexpectEOF("test_key", os.ErrClosed), ErrIoUnexpectEOF)
	s.NoError(WrapErrIoFailed("test_key", nil))

	// 参数相关错误。
	s.ErrorIs(WrapErrParameterInvalid(8, 1, "failed to create"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidRange(1, 1<<16, 0, "depth should be in range"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterMissing("key", "no encryption key"), ErrParameterMissing)

	// Marshal 相关错误。
	s.ErrorIs(WrapErrMarshalMalformed("marshal data too short"), ErrMarshalMalformed)
	s.ErrorIs(WrapErrMarshalMalformedf("long too big: %d bytes", 5), ErrMarshalMalformed)
	s.ErrorIs(WrapErrMarshalUnexpectedTag('?', 2), ErrMarshalMalformed)
	s.ErrorIs(WrapErrMarshalUnlinked("object", 3, 1), ErrMarshalMalformed)
	s.ErrorIs(WrapErrMarshalUnsupported("chan int"), ErrMarshalUnsupported)
	s.ErrorIs(WrapErrMarshalDepthExceeded(10), ErrMarshalDepthExceeded)
	s.ErrorIs(WrapErrMarshalVersionMismatch("4.8", "5.0"), ErrMarshalVersionMismatch)
	s.ErrorIs(WrapErrMarshalHookContract("Point", "dump bytes must be a string"), ErrMarshalHookContract)
	s.ErrorIs(WrapErrMarshalUndefinedClass("Point"), ErrMarshalUndefinedClass)

	// Stream 相关错误。
	s.ErrorIs(WrapErrStreamFrame("short header"), ErrStreamFrame)
	s.ErrorIs(WrapErrStreamTooLarge(1<<25, 1<<24), ErrStreamTooLarge)
	s.ErrorIs(WrapErrStreamCrypto("hmac mismatch"), ErrStreamCrypto)
}

func (s *ErrSuite) TestMarshalErrMessage() {
	err := WrapErrMarshalUnexpectedTag('?', 2)
	s.Equal("marshal data malformed[tag=0x3f][offset=2]: unknown type tag", err.Error())

	err = WrapErrMarshalUnlinked("symbol", 4, 2)
	s.Equal("marshal data malformed[table=symbol][4 out of range 0 <= index <= 1]: dangling reference", err.Error())
}

func (s *ErrSuite) TestHookFailed() {
	cause := errors.New("boom")
	err := WrapErrMarshalHookFailed("Point", "dump", cause)
	s.ErrorIs(err, cause)
	s.Contains(err.Error(), "dump hook failed for class Point")
	s.NoError(WrapErrMarshalHookFailed("Point", "dump", nil))
}

func (s *ErrSuite) TestErrorType() {
	s.Equal(InputError, GetErrorType(WrapErrMarshalMalformed("bad")))
	s.Equal(SystemError, GetErrorType(WrapErrMarshalHookContract("Foo", "bad")))
	s.Equal(SystemError, GetErrorType(errors.New("plain")))
	s.Equal(InputError, GetErrorType(errors.Wrap(WrapErrParameterMissing("key"), "load config")))
	s.Equal(SystemError, GetErrorType(WrapErrIoFailed("frame", errors.New("closed"))))
	s.Equal("input_error", InputError.String())
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func (s *ErrSuite) TestCombineCode() {
	err := Combine(WrapErrStreamFrame("short"), WrapErrMarshalMalformed("bad"))
	s.Equal(Code(ErrMarshalMalformed), Code(err))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
