package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bakery/storefront/internal/cache"
	"bakery/storefront/internal/checkout"
	"bakery/storefront/internal/client"
	"bakery/storefront/internal/domain"
	"bakery/storefront/internal/domain/task"
	"bakery/storefront/internal/queue"
	"bakery/storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var ErrCatalogUnavailable = errors.New("catalog is unavailable")

// fetchTimeout bounds a shared CMS fetch, which outlives the request that started it
const fetchTimeout = 30 * time.Second

// documentTags maps a CMS document type to the cache tags it affects
var documentTags = map[string][]string{
	"menuItem": {cache.TagMenu},
	"category": {cache.TagMenu, cache.TagCategories},
}

// TagsFor returns the cache tags a change to documentType invalidates
func TagsFor(documentType string) []string {
	return documentTags[documentType]
}

type Service struct {
	client      client.CMSClient
	cache       cache.CatalogCache
	queue       queue.Queue
	handoffs    repository.HandoffRepository
	formatter   *checkout.Formatter
	groupName   string
	minIdleTime time.Duration
	maxRetries  int

	fetches  singleflight.Group
	mu       sync.RWMutex
	lastGood *domain.Catalog
}

func NewService(
	client client.CMSClient,
	cache cache.CatalogCache,
	queue queue.Queue,
	handoffs repository.HandoffRepository,
	formatter *checkout.Formatter,
	groupName string,
	minIdleTime int,
	maxRetries int,
) *Service {
	return &Service{
		client:      client,
		cache:       cache,
		queue:       queue,
		handoffs:    handoffs,
		formatter:   formatter,
		groupName:   groupName,
		minIdleTime: time.Duration(minIdleTime) * time.Second,
		maxRetries:  maxRetries,
	}
}

func (s *Service) Formatter() *checkout.Formatter {
	return s.formatter
}

// Snapshot returns the current catalog. A cache miss triggers one CMS fetch
// shared by all concurrent callers. The fetch is detached from any single
// caller's cancellation; each caller stops waiting when its own ctx ends. If
// the CMS cannot be reached the last snapshot seen by this process is served
// instead.
func (s *Service) Snapshot(ctx context.Context) (*domain.Catalog, error) {
	cached, ok, err := s.cache.Get(ctx)
	if err != nil {
		log.Errorf("❌ Failed to read catalog cache: %v", err)
	}
	if ok {
		s.remember(cached)
		return cached, nil
	}

	ch := s.fetches.DoChan("catalog", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.refresh(fetchCtx)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("stopped waiting for catalog: %w", ctx.Err())
	case res = <-ch:
	}

	if err := res.Err; err != nil {
		if last := s.lastKnown(); last != nil {
			log.Warnf("⚠️ Serving catalog from %v, CMS fetch failed: %v", last.FetchedAt.Format(time.RFC3339), err)
			return last, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	return res.Val.(*domain.Catalog), nil
}

func (s *Service) refresh(ctx context.Context) (*domain.Catalog, error) {
	catalog, err := s.client.FetchCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	if err := s.cache.Set(ctx, catalog); err != nil {
		log.Errorf("❌ Failed to cache catalog: %v", err)
	}
	s.remember(catalog)

	return catalog, nil
}

func (s *Service) remember(catalog *domain.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastGood = catalog
}

func (s *Service) lastKnown() *domain.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastGood
}

// Revalidate queues a cache refresh for a changed CMS document. Unknown
// document types affect no tags and are ignored.
func (s *Service) Revalidate(ctx context.Context, documentType, documentID string) ([]string, error) {
	tags := TagsFor(documentType)
	if len(tags) == 0 {
		log.Debugf("Ignoring revalidation for document type %q", documentType)
		return nil, nil
	}

	_, err := s.queue.AddTask(ctx, &task.RevalidateTask{
		Tags:         tags,
		DocumentType: documentType,
		DocumentID:   documentID,
		ReceivedAt:   time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue revalidation: %w", err)
	}

	log.Infof("📨 Queued revalidation of %v for %s %s", tags, documentType, documentID)
	return tags, nil
}

// Checkout turns a validated cart into a deep link and records the handoff
func (s *Service) Checkout(ctx context.Context, sessionID string, validation domain.CheckoutValidation) (*checkout.Order, error) {
	order, err := s.formatter.Checkout(validation)
	if err != nil {
		return nil, err
	}

	handoff := &domain.Handoff{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Message:    order.Message,
		Link:       order.Link,
		TotalCost:  validation.TotalCost,
		TotalItems: validation.TotalItems,
		CreatedAt:  time.Now().UTC(),
	}

	// The customer still gets the link when the audit write fails
	if err := s.handoffs.SaveHandoff(ctx, handoff, validation.ValidItems); err != nil {
		log.Errorf("❌ Failed to record checkout handoff %s: %v", handoff.ID, err)
	} else {
		log.Infof("🛒 Checkout handoff %s: %d items, total %s", handoff.ID, handoff.TotalItems, handoff.TotalCost.StringFixed(2))
	}

	return order, nil
}

func (s *Service) RunWorkers(ctx context.Context, numWorkers int) error {
	var wg sync.WaitGroup

	s.runWorkersForStream(ctx, &wg, numWorkers, s.queue.StreamName(task.RevalidateTaskType), "main")
	s.runWorkersForStream(ctx, &wg, max(1, numWorkers/2), s.queue.StreamName(task.RevalidateRetryTaskType), "retry")

	wg.Wait()
	return nil
}

func (s *Service) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, streamName, workerType string) {
	// Auto-claimer for this stream
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.minIdleTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				consumer := fmt.Sprintf("autoclaimer-%s", workerType)
				claimedMessages, err := s.queue.AutoClaim(ctx, s.groupName, consumer, streamName, s.minIdleTime)
				if err != nil {
					log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
					continue
				}
				if len(claimedMessages) > 0 {
					log.Infof("🔄 Auto-claimed %d messages from %s stream", len(claimedMessages), workerType)
					for _, msg := range claimedMessages {
						if err := s.processMessage(ctx, &msg); err != nil {
							log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("%s-worker-%d", workerType, workerID)
			log.Infof("🚀 Starting %s worker %d as consumer %s", workerType, workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 %s worker %d stopping", workerType, workerID)
					return
				default:
					msg, err := s.queue.GetTask(ctx, s.groupName, consumer, streamName)
					if err != nil {
						if ctx.Err() != nil {
							continue
						}
						log.Errorf("❌ Failed to get task from %s: %v", streamName, err)
						time.Sleep(time.Second)
						continue
					}

					if msg != nil {
						if err := s.processMessage(ctx, msg); err != nil {
							log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}(i + 1)
	}
}

func (s *Service) processMessage(ctx context.Context, msg *redis.XMessage) error {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok {
		return fmt.Errorf("invalid task type in message %s", msg.ID)
	}

	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return fmt.Errorf("invalid task data in message %s", msg.ID)
	}

	switch taskType {
	case task.RevalidateTaskType:
		revalidateTask, err := task.UnmarshalTask[*task.RevalidateTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal revalidate task data: %w", err)
		}

		if err := s.revalidate(ctx, revalidateTask.Tags); err != nil {
			retryTask := &task.RevalidateRetryTask{
				Tags:       revalidateTask.Tags,
				RetryCount: 0,
				Error:      err.Error(),
			}

			if _, addErr := s.queue.AddTask(ctx, retryTask); addErr != nil {
				log.Errorf("❌ Failed to add retry task for tags %v: %v", revalidateTask.Tags, addErr)
			} else {
				log.Warnf("🔄 Added tags %v to retry queue due to error: %v", revalidateTask.Tags, err)
			}
		}

	case task.RevalidateRetryTaskType:
		retryTask, err := task.UnmarshalTask[*task.RevalidateRetryTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal retry task data: %w", err)
		}

		if err := s.retryRevalidation(ctx, retryTask); err != nil {
			return fmt.Errorf("failed to retry revalidation: %w", err)
		}

	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}

	streamName := s.queue.StreamName(taskType)
	if err := s.queue.AckTask(ctx, streamName, s.groupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	return nil
}

// revalidate drops the tagged cache entries and warms the cache again
func (s *Service) revalidate(ctx context.Context, tags []string) error {
	if err := s.cache.Invalidate(ctx, tags...); err != nil {
		return fmt.Errorf("failed to invalidate %v: %w", tags, err)
	}

	catalog, err := s.refresh(ctx)
	if err != nil {
		return err
	}

	log.Infof("✅ Revalidated %v: %d items", tags, len(catalog.Items))
	return nil
}

func (s *Service) retryRevalidation(ctx context.Context, retryTask *task.RevalidateRetryTask) error {
	retryTask.RetryCount++

	log.Infof("🔄 Retrying revalidation of %v (attempt %d)", retryTask.Tags, retryTask.RetryCount)

	err := s.revalidate(ctx, retryTask.Tags)
	if err == nil {
		log.Infof("✅ Recovered revalidation of %v after %d attempts", retryTask.Tags, retryTask.RetryCount)
		return nil
	}

	if retryTask.RetryCount >= s.maxRetries {
		// The cache entry is already gone, the next page view fetches again
		log.Errorf("❌ Giving up revalidation of %v after %d attempts: %v", retryTask.Tags, retryTask.RetryCount, err)
		return nil
	}

	newRetryTask := &task.RevalidateRetryTask{
		Tags:       retryTask.Tags,
		RetryCount: retryTask.RetryCount,
		Error:      err.Error(),
	}

	if _, addErr := s.queue.AddTask(ctx, newRetryTask); addErr != nil {
		log.Errorf("❌ Failed to re-add retry task for %v: %v", retryTask.Tags, addErr)
		return addErr
	}

	log.Warnf("🔄 Revalidation of %v failed again, will retry (attempt %d): %v", retryTask.Tags, retryTask.RetryCount, err)
	return nil
}
