package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/services/analysis"
	"github.com/ternarybob/earningsear/internal/services/content"
	"github.com/ternarybob/earningsear/internal/services/discovery"
	"github.com/ternarybob/earningsear/internal/services/llm"
	"github.com/ternarybob/earningsear/internal/services/metrics"
	"github.com/ternarybob/earningsear/internal/services/notify"
	"github.com/ternarybob/earningsear/internal/services/pdf"
	"github.com/ternarybob/earningsear/internal/services/renderer"
	"github.com/ternarybob/earningsear/internal/services/retry"
	"github.com/ternarybob/earningsear/internal/services/scheduler"
	"github.com/ternarybob/earningsear/internal/services/secrets"
	"github.com/ternarybob/earningsear/internal/storage"
	awsstore "github.com/ternarybob/earningsear/internal/storage/aws"
	"github.com/ternarybob/earningsear/internal/workflow"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *storage.Manager
	Resolver       interfaces.SecretResolver
	HTTPClient     *http.Client

	PDFExtractor *pdf.Extractor
	Report       *pdf.ReportRenderer
	LLMFactory   *llm.Factory
	Analysis     *analysis.Client
	Notifiers    *notify.Factory

	SchedulerService *scheduler.Service
	MetricsServer    *metrics.Server

	getenv func(string) string
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config:     cfg,
		Logger:     logger,
		HTTPClient: &http.Client{Timeout: common.Duration(cfg.Workflow.HTTPTimeout, 30*time.Second)},
		getenv:     os.Getenv,
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		_ = app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Str("storage", cfg.Storage.Type).
		Str("llm_provider", string(cfg.LLM.DefaultProvider)).
		Str("engine", cfg.Browser.Engine).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer
func (a *App) initDatabase(ctx context.Context) error {
	storageManager, err := storage.NewStorageManager(ctx, a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager
	return nil
}

func (a *App) initServices(ctx context.Context) error {
	a.Resolver = secrets.NewLazy(func(ctx context.Context) (interfaces.SecretResolver, error) {
		awsConfig, err := awsstore.LoadConfig(ctx, a.Config.AWS.Region)
		if err != nil {
			return nil, err
		}
		return secrets.NewManagerResolver(secretsmanager.NewFromConfig(awsConfig), a.Logger), nil
	})

	a.PDFExtractor = pdf.NewExtractor(a.Logger)
	a.Report = pdf.NewReportRenderer(a.Logger)

	schema, err := analysis.LoadSchema(a.Config.LLM.ResponseSchemaFile)
	if err != nil {
		return err
	}
	a.LLMFactory = llm.NewFactory(a.Config, a.Resolver, nil, a.Logger)
	a.Analysis = analysis.NewClient(a.LLMFactory, a.Config.LLM, schema, a.Logger)

	var publisher notify.SNSPublisher
	if a.Config.Notify.SNS.TopicARN != "" {
		awsConfig, err := awsstore.LoadConfig(ctx, a.Config.AWS.Region)
		if err != nil {
			return err
		}
		publisher = sns.NewFromConfig(awsConfig)
	}
	a.Notifiers = notify.NewFactory(a.Config.Notify, a.Resolver, publisher, a.Report, a.HTTPClient, a.Logger)

	a.SchedulerService = scheduler.NewService(a.Logger)

	if a.Config.Metrics.Enabled {
		a.MetricsServer = metrics.NewServer(a.Config.Metrics.Address, a.Logger)
	}
	return nil
}

func (a *App) fetchPolicy() *retry.Policy {
	policy := retry.NewPolicy()
	if a.Config.Workflow.FetchAttempts > 0 {
		policy.MaxAttempts = a.Config.Workflow.FetchAttempts
	}
	return policy
}

// LoadSite loads a site config from path or, when path is empty, from the
// site config store by ticker. quarter and year override the document when
// non-zero.
func (a *App) LoadSite(ctx context.Context, path, ticker string, quarter, year int) (models.WorkflowConfig, error) {
	var (
		site models.WorkflowConfig
		err  error
	)
	switch {
	case path != "":
		site, err = common.LoadWorkflowConfigFile(path, a.getenv)
	case ticker != "":
		record, getErr := a.StorageManager.SiteConfigStorage().GetSiteConfig(ctx, ticker)
		if getErr != nil {
			return models.WorkflowConfig{}, getErr
		}
		site, err = common.LoadWorkflowConfig(record.Config, a.getenv)
	default:
		site, err = common.LoadWorkflowConfig(nil, a.getenv)
	}
	if err != nil {
		return models.WorkflowConfig{}, err
	}

	if quarter > 0 {
		site.Quarter = models.FlexInt(quarter)
	}
	if year > 0 {
		site.Year = models.FlexInt(year)
	}
	if err := site.Validate(); err != nil {
		return models.WorkflowConfig{}, err
	}
	return site, nil
}

// RunSite executes one workflow for site with fresh per-run components.
func (a *App) RunSite(ctx context.Context, site models.WorkflowConfig) workflow.Result {
	site = site.WithDefaults()
	logger := a.Logger.WithCorrelationId(site.Ticker)

	policy, err := renderer.NewPolicy(site.BrowserType, a.Config.Browser, a.HTTPClient, logger)
	if err != nil {
		return workflow.Failed(site, err)
	}

	notifier, err := a.Notifiers.ForSite(ctx, site)
	if err != nil {
		return workflow.Failed(site, err)
	}

	locator := discovery.NewLocator(policy, discovery.LocatorConfigFrom(a.Config.Workflow), logger)
	finder := discovery.NewFinder(locator, a.HTTPClient, a.fetchPolicy(), logger)
	extractor := content.NewExtractor(policy, a.PDFExtractor, a.HTTPClient, a.fetchPolicy(),
		content.ConfigFrom(a.Config.Workflow, a.Config.Browser), logger)

	messages, artifacts := a.StorageManager.ForSite(site)

	o := workflow.New(site, workflow.Deps{
		Finder:    finder,
		Extractor: extractor,
		Metrics:   a.Analysis,
		Notifier:  notifier,
		Messages:  messages,
		Artifacts: artifacts,
		Logger:    logger,
	})
	return o.Process(ctx)
}

// ScheduleJobs registers every configured watch job with the scheduler.
func (a *App) ScheduleJobs() error {
	if len(a.Config.Scheduler.Jobs) == 0 {
		return fmt.Errorf("no [[scheduler.jobs]] configured")
	}

	for _, job := range a.Config.Scheduler.Jobs {
		name := job.Name
		if name == "" {
			name = job.Ticker
		}
		if name == "" {
			name = job.SiteConfig
		}

		err := a.SchedulerService.RegisterJob(name, job.Schedule, job.KeepAfter, func(ctx context.Context) error {
			site, err := a.LoadSite(ctx, job.SiteConfig, job.Ticker, job.Quarter, job.Year)
			if err != nil {
				return err
			}
			result := a.RunSite(ctx, site)
			if result.Error != "" {
				return errors.New(result.Error)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close stops background services and closes storage
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.MetricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Debug().Msg("Storage closed")
	}

	return nil
}
