package chunks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/samber/oops"

	"piverse.ai/internal/sim/terrain/heightmap"
)

// Job pairs a request with the channel its response goes to.
type Job struct {
	Req   Request
	Reply chan<- Response
}

type PoolConfig struct {
	Workers int
	Mode    heightmap.Mode
	Simplex heightmap.SimplexParams
	// CacheMaxCost bounds the shared memo in float32 samples. Zero disables
	// the memo.
	CacheMaxCost int64
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:      4,
		Mode:         heightmap.ModeSine,
		Simplex:      heightmap.DefaultSimplexParams(),
		CacheMaxCost: 4 << 20,
	}
}

// Pool synthesizes heightmaps on a fixed set of goroutines. Its queue is
// unbounded so Submit never blocks the world loop.
type Pool struct {
	cfg     PoolConfig
	logger  *log.Logger
	metrics *Metrics
	cache   *ristretto.Cache[string, heightmap.Heightmap]

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Job
	closed bool

	done      chan struct{}
	closeOnce sync.Once
	waitOnce  sync.Once
	wg        sync.WaitGroup
}

type PoolOption func(*Pool)

func WithLogger(l *log.Logger) PoolOption { return func(p *Pool) { p.logger = l } }
func WithMetrics(m *Metrics) PoolOption   { return func(p *Pool) { p.metrics = m } }

func NewPool(cfg PoolConfig, opts ...PoolOption) (*Pool, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	p := &Pool{cfg: cfg, done: make(chan struct{})}
	p.cond = sync.NewCond(&p.mu)
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = log.Default().WithPrefix("pool")
	}
	if cfg.CacheMaxCost > 0 {
		c, err := ristretto.NewCache(&ristretto.Config[string, heightmap.Heightmap]{
			NumCounters: 10 * (cfg.CacheMaxCost/int64(17*17) + 1),
			MaxCost:     cfg.CacheMaxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, oops.In("chunks").Code("E_CACHE").Wrapf(err, "create heightmap memo")
		}
		p.cache = c
	}
	return p, nil
}

// Start launches the workers. They exit when ctx is cancelled or Close is
// called; Wait blocks until they have.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case <-ctx.Done():
			p.Close()
		case <-p.done:
		}
	}()
}

// Submit enqueues job and reports false once the pool is closed.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.queue = append(p.queue, job)
	p.metrics.queue(len(p.queue))
	p.metrics.request()
	p.cond.Signal()
	return true
}

// Dispatcher returns a Dispatcher that submits requests replying on reply.
func (p *Pool) Dispatcher(reply chan<- Response) Dispatcher {
	return DispatcherFunc(func(r Request) {
		if !p.Submit(Job{Req: r, Reply: reply}) {
			p.logger.Warn("dropped request after close", "key", r.Key)
		}
	})
}

// Close stops accepting jobs and wakes idle workers. Queued jobs are
// discarded.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.queue = nil
		p.cond.Broadcast()
		p.mu.Unlock()
		close(p.done)
	})
}

// Wait blocks until every worker has exited, then releases the memo.
func (p *Pool) Wait() {
	p.wg.Wait()
	p.waitOnce.Do(func() {
		if p.cache != nil {
			p.cache.Close()
		}
	})
}

func (p *Pool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return Job{}, false
	}
	job := p.queue[0]
	p.queue[0] = Job{}
	p.queue = p.queue[1:]
	p.metrics.queue(len(p.queue))
	return job, true
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		job, ok := p.next()
		if !ok {
			return
		}
		resp := p.Compute(job.Req)
		if job.Reply == nil {
			continue
		}
		select {
		case job.Reply <- resp:
		case <-ctx.Done():
			return
		}
	}
}

// Compute answers one request synchronously, consulting the memo first.
// Synthesis follows the request's coordinates; Key is echoed back untouched.
// Returned data is shared with the memo and must not be modified.
func (p *Pool) Compute(req Request) Response {
	hreq := heightmap.Request{
		Segment: req.Segment,
		CX:      req.CX,
		CZ:      req.CZ,
		Res:     req.Res,
		Mode:    p.cfg.Mode,
		Simplex: p.cfg.Simplex,
	}
	memoKey := heightmap.ChunkSeed(req.Segment, req.CX, req.CZ, req.Res) + "/" + p.cfg.Mode.String()

	cache := p.cache
	if cache != nil {
		if hm, ok := cache.Get(memoKey); ok && hm.Valid() {
			p.metrics.hit()
			return toResponse(req.Key, hm)
		}
	}
	start := time.Now()
	hm := heightmap.Generate(hreq)
	p.metrics.observe(time.Since(start).Seconds())
	if cache != nil {
		cache.Set(memoKey, hm, int64(len(hm.Data)))
	}
	return toResponse(req.Key, hm)
}

func toResponse(key string, hm heightmap.Heightmap) Response {
	return Response{Key: key, Width: hm.Width, Height: hm.Height, Data: hm.Data}
}
