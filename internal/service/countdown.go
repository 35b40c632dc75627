package service

import (
	"fmt"
	"sync"
	"time"
)

// Countdown 單一 reservation session 的倒數計時。
// 狀態機：Running → {Expired, Stopped}。Stopped 由 commit 或 cancel 明確觸發，
// Expired 由歸零觸發；到期回呼只會觸發一次。
type Countdown struct {
	mu        sync.Mutex
	remaining int
	running   bool
	interval  time.Duration
	stopCh    chan struct{}
	onTick    func(remaining int)
	onExpire  func()
}

// NewCountdown 建立倒數計時。interval 預設 1 秒，測試可以縮短加速。
func NewCountdown(seconds int, interval time.Duration, onExpire func()) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		remaining: seconds,
		interval:  interval,
		onExpire:  onExpire,
	}
}

// OnTick 設定每次 tick 後的回呼（帶剩餘秒數），供顯示層更新用；須在 Start 前設定
func (c *Countdown) OnTick(fn func(remaining int)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Start 啟動倒數；已在執行時為 no-op（防止 double-start）
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.running || c.remaining <= 0 {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	go c.run(stopCh)
}

// Stop 取消後續的 tick；在任何狀態下呼叫都安全
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.running = false
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
	c.mu.Unlock()
}

func (c *Countdown) run(stopCh chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.Tick()
			if !c.IsRunning() {
				return
			}
		}
	}
}

// Tick 每秒呼叫一次。非 Running 狀態下為 no-op（晚到或重複的 tick 不會重複觸發）。
// 歸零時轉為到期並觸發 onExpire。
func (c *Countdown) Tick() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.remaining--
	onTick := c.onTick
	if c.remaining > 0 {
		remaining := c.remaining
		c.mu.Unlock()
		if onTick != nil {
			onTick(remaining)
		}
		return
	}
	c.remaining = 0
	c.running = false
	onExpire := c.onExpire
	c.mu.Unlock()

	if onTick != nil {
		onTick(0)
	}
	if onExpire != nil {
		onExpire()
	}
}

func (c *Countdown) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Remaining 剩餘秒數
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Display 以 MM:SS 格式呈現剩餘時間，純顯示用
func (c *Countdown) Display() string {
	remaining := c.Remaining()
	return fmt.Sprintf("%02d:%02d", remaining/60, remaining%60)
}
