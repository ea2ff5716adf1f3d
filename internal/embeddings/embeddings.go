// Package embeddings produces vector embeddings for run summaries so they
// can be searched by similarity in the Postgres store. Embeddings are
// computed locally by feature hashing: each summary is tokenized and its
// tokens hashed into a fixed number of buckets, giving a cheap,
// deterministic vector with no extra model call.
package embeddings

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// Dim is the dimensionality of generated embeddings; it must match the
// vector column width in the Postgres schema.
const Dim = 64

// Result represents the outcome of one embedding request.
type Result struct {
	Content   string
	Embedding []float32
	Error     error
}

type work struct {
	content string
	result  chan<- Result
}

// Service generates embeddings on a bounded worker pool and caches them by
// content.
type Service struct {
	numWorkers int
	workQueue  chan work
	cache      sync.Map
	wg         sync.WaitGroup
}

// NewService creates an embedding service with the given number of workers.
func NewService(numWorkers int) *Service {
	if numWorkers <= 0 {
		numWorkers = 2
	}
	s := &Service{
		numWorkers: numWorkers,
		workQueue:  make(chan work, 100),
	}
	s.startWorkers()
	return s
}

func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for w := range s.workQueue {
				if cached, ok := s.cache.Load(w.content); ok {
					if embedding, valid := cached.([]float32); valid {
						w.result <- Result{Content: w.content, Embedding: embedding}
						continue
					}
				}

				embedding := Embed(w.content)
				s.cache.Store(w.content, embedding)
				w.result <- Result{Content: w.content, Embedding: embedding}
			}
		}()
	}
}

// GetEmbedding requests an embedding asynchronously. The returned channel
// yields exactly one Result.
func (s *Service) GetEmbedding(content string) <-chan Result {
	resultChan := make(chan Result, 1)
	select {
	case s.workQueue <- work{content: content, result: resultChan}:
	default:
		resultChan <- Result{
			Content: content,
			Error:   fmt.Errorf("embedding queue is full, try again later"),
		}
		close(resultChan)
	}
	return resultChan
}

// Embed computes the feature-hashed embedding of content: lower-cased
// whitespace tokens hashed into Dim buckets with alternating sign, then
// L2-normalized. Identical content always yields an identical vector.
func Embed(content string) []float32 {
	vec := make([]float32, Dim)
	for _, token := range strings.Fields(strings.ToLower(content)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()
		bucket := int(sum % Dim)
		sign := float32(1)
		if (sum>>16)&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

// Close shuts down the service and waits for all workers to finish.
func (s *Service) Close() {
	if s.workQueue != nil {
		close(s.workQueue)
	}
	s.wg.Wait()
}
