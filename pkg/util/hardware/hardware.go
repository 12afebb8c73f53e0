package hardware

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/lk2023060901/rmarshal-go/pkg/log"
)

var (
	cpuNumOnce sync.Once
	cpuNum     int
)

// GetCPUNum 返回当前进程可用的逻辑 CPU 数。
// 优先使用 GOMAXPROCS（容器内由 automaxprocs 修正），gopsutil 获取的核数作为上限。
func GetCPUNum() int {
	cpuNumOnce.Do(func() {
		cpuNum = runtime.GOMAXPROCS(0)
		counts, err := cpu.Counts(true)
		if err != nil {
			log.Warn("failed to get cpu counts", zap.Error(err))
			return
		}
		if counts > 0 && counts < cpuNum {
			cpuNum = counts
		}
	})
	if cpuNum <= 0 {
		return 1
	}
	return cpuNum
}
