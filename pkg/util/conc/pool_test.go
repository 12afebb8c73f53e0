package conc

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type PoolSuite struct {
	suite.Suite
}

func (s *PoolSuite) TestSubmit() {
	pool := NewPool[int](4)
	defer pool.Release()
	s.Equal(4, pool.Cap())

	futures := make([]*Future[int], 0, 16)
	for i := 0; i < 16; i++ {
		i := i
		futures = append(futures, pool.Submit(func() (int, error) {
			return i * i, nil
		}))
	}
	s.NoError(AwaitAll(futures...))
	for i, f := range futures {
		v, err := f.Await()
		s.NoError(err)
		s.Equal(i*i, v)
	}
}

func (s *PoolSuite) TestSubmitError() {
	pool := NewPool[int](2)
	defer pool.Release()

	errBoom := errors.New("boom")
	ok := pool.Submit(func() (int, error) { return 1, nil })
	bad := pool.Submit(func() (int, error) { return 0, errBoom })

	s.True(ok.OK())
	s.False(bad.OK())
	s.ErrorIs(bad.Err(), errBoom)
	s.ErrorIs(AwaitAll(ok, bad), errBoom)
	s.ErrorIs(BlockOnAll(ok, bad), errBoom)
}

func (s *PoolSuite) TestPreHandler() {
	called := make(chan struct{}, 1)
	pool := NewPool[int](1, WithPreHandler(func() { called <- struct{}{} }))
	defer pool.Release()

	s.Equal(7, pool.Submit(func() (int, error) { return 7, nil }).Value())
	s.Len(called, 1)
}

func (s *PoolSuite) TestConcealPanic() {
	pool := NewPool[int](1, WithName("test"), WithConcealPanic(true))
	defer pool.Release()

	f := pool.Submit(func() (int, error) { panic("worker down") })
	s.ErrorContains(f.Err(), "worker down")
	s.Equal(3, pool.Submit(func() (int, error) { return 3, nil }).Value())
}

func (s *PoolSuite) TestRelease() {
	pool := NewPool[int](1)
	pool.Release()
	pool.Release()
	s.True(pool.Released())

	f := pool.Submit(func() (int, error) { return 1, nil })
	s.Error(f.Err())
}

func (s *PoolSuite) TestGo() {
	f := Go(func() (string, error) { return "done", nil })
	<-f.Inner()
	s.Equal("done", f.Value())
}

func TestPool(t *testing.T) {
	suite.Run(t, new(PoolSuite))
}
