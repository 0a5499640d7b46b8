package monitoring

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"
)

var (
	hostCPUUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "host_cpu_usage_percent",
		Help: "Host CPU usage",
	})

	hostMemUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "host_memory_usage_percent",
		Help: "Host memory usage",
	})

	hostDiskUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "host_disk_usage_percent",
		Help: "Host disk usage",
	})
)

// CollectSystemStats samples host metrics until stop is closed.
func CollectSystemStats(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("System stats collector started")

	for {
		select {
		case <-ticker.C:
			sampleSystemStats()
		case <-stop:
			log.Println("System stats collector stopping")
			return
		}
	}
}

func sampleSystemStats() {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		hostCPUUsage.Set(percents[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		hostMemUsage.Set(vm.UsedPercent)
	}
	if du, err := disk.Usage("/"); err == nil {
		hostDiskUsage.Set(du.UsedPercent)
	}
}
