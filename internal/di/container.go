package di

import (
	"fmt"

	"github.com/google/uuid"

	"scraper-agent/internal/adapter/tool"
	"scraper-agent/internal/application/port/output"
	"scraper-agent/internal/application/service"
	"scraper-agent/internal/domain/entity"
	"scraper-agent/internal/infrastructure/browser/rod"
	"scraper-agent/internal/infrastructure/llm/openrouter"
	"scraper-agent/internal/infrastructure/logger"
	"scraper-agent/internal/usecase/budget"
	"scraper-agent/internal/usecase/extract"
	"scraper-agent/internal/usecase/runner"
)

type Container struct {
	RunID    string
	Browser  output.BrowserPort
	Oracle   output.OraclePort
	Logger   output.LoggerPort
	Tools    output.ToolRegistry
	Recorder *extract.Recorder
	Runner   *runner.Runner
}

type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	BrowserHeadless bool
	OutputPath      string
	IterationLimit  int
	ScrapeConfig    *entity.ScrapeConfig
}

func NewContainer(cfg Config) (*Container, error) {
	if cfg.ScrapeConfig == nil {
		return nil, fmt.Errorf("scrape config is required")
	}

	runID := uuid.NewString()

	log, err := logger.NewLoggerAdapter(cfg.ScrapeConfig.CollectionName())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	browserCfg := rod.DefaultConfig()
	browserCfg.Headless = cfg.BrowserHeadless
	browser := rod.NewBrowserAdapter(browserCfg)

	oracleCfg := openrouter.DefaultConfig(cfg.APIKey, cfg.Model)
	if cfg.BaseURL != "" {
		oracleCfg.BaseURL = cfg.BaseURL
	}
	oracleCfg.Logger = log
	oracle := openrouter.NewOpenRouterAdapter(oracleCfg)

	cache := budget.NewArtifactCache()
	budgetMgr := budget.NewManager(cache, log, budget.DefaultConfig())

	engine := extract.NewEngine()
	recorder := extract.NewRecorder()

	tools := service.NewToolRegistry(browser, log)
	if err := registerTools(tools, browser, cache, engine, recorder, cfg, runID, log); err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	runnerCfg := runner.DefaultConfig()
	runnerCfg.RunID = runID
	if cfg.IterationLimit > 0 {
		runnerCfg.IterationLimit = cfg.IterationLimit
	}

	run := runner.New(oracle, tools, budgetMgr, recorder, browser, log, runnerCfg)

	return &Container{
		RunID:    runID,
		Browser:  browser,
		Oracle:   oracle,
		Logger:   log,
		Tools:    tools,
		Recorder: recorder,
		Runner:   run,
	}, nil
}

func (c *Container) Close() {
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}

func registerTools(
	registry *service.ToolRegistryImpl,
	browser output.BrowserPort,
	cache *budget.ArtifactCache,
	engine *extract.Engine,
	recorder *extract.Recorder,
	cfg Config,
	runID string,
	log output.LoggerPort,
) error {
	toRegister := []output.ToolPort{
		tool.NewNavigateTool(browser, log),
		tool.NewClickTool(browser, log),
		tool.NewFillTool(browser, log),
		tool.NewScreenshotTool(browser, log),
		tool.NewExtractLinksTool(browser, log),
		tool.NewGetHTMLTool(browser, log),
		tool.NewPageMarkdownTool(cache, log),
		tool.NewExtractDataTool(engine, cache, recorder, cfg.ScrapeConfig, runID, cfg.OutputPath, log),
		tool.NewSaveResultsTool(cfg.OutputPath, log),
		tool.NewDoneTool(log),
	}
	for _, t := range toRegister {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}
