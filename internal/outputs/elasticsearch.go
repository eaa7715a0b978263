package outputs

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/nickborgers/monorepo/pagegaze/internal/config"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// ErrOutputClosed is returned by Write after Close
var ErrOutputClosed = errors.New("output is shutting down")

// ElasticsearchOutput pushes reports to Elasticsearch
type ElasticsearchOutput struct {
	config        *config.ElasticsearchConfig
	client        *elasticsearch.Client
	bulkIndexer   esutil.BulkIndexer
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	reportChannel chan *models.Report
}

// esDocument is the indexed form of a report. Each signal type gets its own
// field so the index mapping never sees two shapes under one name.
type esDocument struct {
	Timestamp   time.Time                 `json:"@timestamp"`
	ReportID    string                    `json:"report_id"`
	SessionID   string                    `json:"session_id"`
	Site        models.SiteInfo           `json:"site"`
	SignalType  models.SignalType         `json:"signal_type"`
	Navigation  *models.NavigationMetrics `json:"navigation_timing,omitempty"`
	Visit       *models.VisitInfo         `json:"visit,omitempty"`
	Environment *models.EnvInfo           `json:"environment,omitempty"`
	Metadata    models.ReportMetadata     `json:"metadata"`
}

func buildDocument(report *models.Report) esDocument {
	doc := esDocument{
		Timestamp:  report.Timestamp,
		ReportID:   report.ReportID,
		SessionID:  report.SessionID,
		Site:       report.Site,
		SignalType: report.Envelope.Type,
		Metadata:   report.Metadata,
	}

	switch v := report.Envelope.Value.(type) {
	case models.NavigationMetrics:
		doc.Navigation = &v
	case models.VisitInfo:
		doc.Visit = &v
	case models.EnvInfo:
		doc.Environment = &v
	}
	return doc
}

// NewElasticsearchOutput creates a new Elasticsearch output
func NewElasticsearchOutput(cfg *config.ElasticsearchConfig) (*ElasticsearchOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	// Build Elasticsearch configuration
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.Endpoint},
	}

	// Configure authentication
	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	// Configure TLS
	if cfg.TLSSkipVerify {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	// Create Elasticsearch client
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	// Test connection
	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("Elasticsearch returned error: %s", res.Status())
	}

	log.Printf("Connected to Elasticsearch at %s", cfg.Endpoint)

	// Create bulk indexer
	bulkIndexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        client,
		NumWorkers:    2,
		FlushBytes:    cfg.BulkSize * 1024,
		FlushInterval: cfg.FlushInterval,
		OnError: func(ctx context.Context, err error) {
			log.Printf("Elasticsearch bulk indexer error: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &ElasticsearchOutput{
		config:        cfg,
		client:        client,
		bulkIndexer:   bulkIndexer,
		ctx:           ctx,
		cancel:        cancel,
		reportChannel: make(chan *models.Report, 100),
	}

	// Start background worker to process reports
	e.wg.Add(1)
	go e.processReports()

	return e, nil
}

// processReports indexes queued reports until Close, then drains the queue
func (e *ElasticsearchOutput) processReports() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			for {
				select {
				case report := <-e.reportChannel:
					e.index(report)
				default:
					return
				}
			}
		case report := <-e.reportChannel:
			e.index(report)
		}
	}
}

func (e *ElasticsearchOutput) index(report *models.Report) {
	if err := e.indexReport(report); err != nil {
		log.Printf("Failed to index report to Elasticsearch: %v", err)
	}
}

func (e *ElasticsearchOutput) indexReport(report *models.Report) error {
	data, err := json.Marshal(buildDocument(report))
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	// The indexer outlives e.ctx so queued reports drain on Close
	return e.bulkIndexer.Add(
		context.Background(),
		esutil.BulkIndexerItem{
			Action:     "index",
			Index:      formatIndexName(e.config.IndexPattern, report.Timestamp),
			DocumentID: report.ReportID,
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					log.Printf("Elasticsearch indexing error: %v", err)
				} else {
					log.Printf("Elasticsearch indexing failed: %s: %s", res.Error.Type, res.Error.Reason)
				}
			},
		},
	)
}

// formatIndexName expands %{+yyyy.MM.dd}, %{+yyyy.MM} and %{+yyyy} in pattern
func formatIndexName(pattern string, t time.Time) string {
	t = t.UTC()
	r := strings.NewReplacer(
		"%{+yyyy.MM.dd}", t.Format("2006.01.02"),
		"%{+yyyy.MM}", t.Format("2006.01"),
		"%{+yyyy}", t.Format("2006"),
	)
	return r.Replace(pattern)
}

// Write queues a report for indexing. A full queue drops the report.
func (e *ElasticsearchOutput) Write(report *models.Report) error {
	if e == nil {
		return nil
	}

	select {
	case <-e.ctx.Done():
		return ErrOutputClosed
	default:
	}

	select {
	case e.reportChannel <- report:
		return nil
	default:
		log.Printf("Warning: Elasticsearch report channel is full, dropping report %s", report.ReportID)
		return nil
	}
}

// Name returns the output module name
func (e *ElasticsearchOutput) Name() string {
	return "elasticsearch"
}

// Close flushes pending documents and closes the connection
func (e *ElasticsearchOutput) Close() error {
	if e == nil {
		return nil
	}

	log.Println("Shutting down Elasticsearch output...")

	e.cancel()
	e.wg.Wait()

	if err := e.bulkIndexer.Close(context.Background()); err != nil {
		log.Printf("Error closing Elasticsearch bulk indexer: %v", err)
		return err
	}

	stats := e.bulkIndexer.Stats()
	log.Printf("Elasticsearch indexer stats: %d indexed, %d failed", stats.NumIndexed, stats.NumFailed)

	return nil
}
