package contend

import "sync"

// Probe 统计同时处于临界区内的执行者数量。并发安全。
type Probe struct {
	mu         sync.Mutex
	active     int
	maxActive  int
	overlapped bool
	sections   int
}

// Enter 标记进入临界区。
func (p *Probe) Enter() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active++
	p.sections++
	if p.active > 1 {
		p.overlapped = true
	}
	p.maxActive = max(p.maxActive, p.active)
}

// Exit 标记离开临界区。
func (p *Probe) Exit() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
}

// Overlapped 报告是否曾有两个临界区同时执行。
func (p *Probe) Overlapped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overlapped
}

// MaxActive 返回观察到的最大并发临界区数量。
func (p *Probe) MaxActive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

// Sections 返回进入过临界区的总次数。
func (p *Probe) Sections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sections
}
