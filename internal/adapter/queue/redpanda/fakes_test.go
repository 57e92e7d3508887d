package redpanda

import (
	"context"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	errs    []error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if err == nil {
			f.records = append(f.records, r)
		}
		out = append(out, kgo.ProduceResult{Record: r, Err: err})
	}
	return out
}

func (f *fakeProducer) produced() []*kgo.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*kgo.Record(nil), f.records...)
}

// fakeFetcher hands out the queued batches and then blocks until ctx ends.
type fakeFetcher struct {
	mu        sync.Mutex
	batches   []kgo.Fetches
	committed []*kgo.Record
	drained   chan struct{}
}

func newFakeFetcher(batches ...kgo.Fetches) *fakeFetcher {
	return &fakeFetcher{batches: batches, drained: make(chan struct{})}
}

func (f *fakeFetcher) PollFetches(ctx context.Context) kgo.Fetches {
	f.mu.Lock()
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return b
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (f *fakeFetcher) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, rs...)
	if len(f.batches) == 0 {
		select {
		case <-f.drained:
		default:
			close(f.drained)
		}
	}
	return nil
}

func fetchesOf(recs ...*kgo.Record) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      TopicScore,
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: recs}},
	}}}}
}

type fakeProcessor struct {
	mu      sync.Mutex
	process func(domain.ScoreTaskPayload, int) error
	calls   map[string]int
	failed  map[string]error
}

func newFakeProcessor(fn func(domain.ScoreTaskPayload, int) error) *fakeProcessor {
	return &fakeProcessor{process: fn, calls: map[string]int{}, failed: map[string]error{}}
}

func (f *fakeProcessor) Process(_ domain.Context, p domain.ScoreTaskPayload) error {
	f.mu.Lock()
	f.calls[p.SubmissionID]++
	n := f.calls[p.SubmissionID]
	f.mu.Unlock()
	return f.process(p, n)
}

func (f *fakeProcessor) Fail(_ domain.Context, id string, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = cause
	return nil
}

type fakeRequester struct {
	codes map[string]int16
	err   error
	seen  []string
}

func (f *fakeRequester) Request(_ context.Context, req kmsg.Request) (kmsg.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	ct := req.(*kmsg.CreateTopicsRequest)
	resp := kmsg.NewPtrCreateTopicsResponse()
	for _, t := range ct.Topics {
		f.seen = append(f.seen, t.Topic)
		rt := kmsg.NewCreateTopicsResponseTopic()
		rt.Topic = t.Topic
		rt.ErrorCode = f.codes[t.Topic]
		resp.Topics = append(resp.Topics, rt)
	}
	return resp, nil
}
