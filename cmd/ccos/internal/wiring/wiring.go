// Package wiring assembles a runnable CCOS pipeline (stores, marketplace,
// arbiter, resolution loop, orchestrator, execution engine) from
// ccos/config, the way cmd/ccos's main package would inline if it weren't
// split out for testability.
package wiring

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mandubian/ccos-sub004/ccos/arbiter"
	"github.com/mandubian/ccos-sub004/ccos/arbiter/model"
	"github.com/mandubian/ccos-sub004/ccos/bus"
	"github.com/mandubian/ccos-sub004/ccos/config"
	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
	intentstore "github.com/mandubian/ccos-sub004/ccos/intentgraph/store"
	intentmem "github.com/mandubian/ccos-sub004/ccos/intentgraph/store/memory"
	intentmongo "github.com/mandubian/ccos-sub004/ccos/intentgraph/store/mongo"
	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	marketstore "github.com/mandubian/ccos-sub004/ccos/marketplace/store"
	marketmem "github.com/mandubian/ccos-sub004/ccos/marketplace/store/memory"
	marketmongo "github.com/mandubian/ccos-sub004/ccos/marketplace/store/mongo"
	"github.com/mandubian/ccos-sub004/ccos/orchestrator"
	"github.com/mandubian/ccos-sub004/ccos/orchestrator/engine"
	"github.com/mandubian/ccos-sub004/ccos/orchestrator/engine/inproc"
	"github.com/mandubian/ccos-sub004/ccos/orchestrator/engine/temporal"
	planmem "github.com/mandubian/ccos-sub004/ccos/orchestrator/planstore/memory"
	"github.com/mandubian/ccos-sub004/ccos/orchestrator/workflow"
	"github.com/mandubian/ccos-sub004/ccos/policy"
	"github.com/mandubian/ccos-sub004/ccos/resolution"
	pulseclient "github.com/mandubian/ccos-sub004/features/stream/pulse/clients/pulse"
	"github.com/mandubian/ccos-sub004/microvm/stub"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// demoEchoCapabilityID is the local capability every demo plan can call to
// round-trip a value through the orchestrator without any external
// dependency.
const demoEchoCapabilityID = "ccos.echo"

// demoSandboxCapabilityID is the microvm-dispatched demo capability. The
// demo oracle's plan does not call it.
const demoSandboxCapabilityID = "ccos.sandbox-echo"

// App holds every wired component a CLI command needs.
type App struct {
	Config       config.Config
	Market       *marketplace.Marketplace
	Graph        *intentgraph.Graph
	Arbiter      *arbiter.Arbiter
	Orchestrator *orchestrator.Orchestrator
	Engine       engine.Engine
	Bus          bus.Bus
	TaskQueue    string
}

// New loads configuration from the environment and wires every component,
// defaulting to in-memory stores, an in-process engine, and a canned model
// oracle suitable for offline demos.
func New(ctx context.Context) (*App, error) {
	cfg := config.Load()

	intentStore, marketStore, err := stores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	market := marketplace.New(marketStore)
	graph := intentgraph.New(intentStore)
	seedDemoCapabilities(ctx, market)

	oracle := modelClient()
	audit := arbiter.NewAuditLog(os.Stderr)
	arb := arbiter.New(oracle, graph, market, audit)
	arb.ProviderName = "ccos-cli"

	resolver := &resolution.MarketplaceResolver{Market: market, AutoApprove: true}
	loop := &resolution.Loop{Market: market, Resolver: resolver, Planner: arb, MaxRounds: cfg.MaxResolutionRounds}

	orch := orchestrator.New(market, graph, planmem.New(), arb, loop)

	sandbox := stub.New()
	if err := sandbox.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize demo sandbox: %w", err)
	}
	orch.NewDispatcher = func(rtctx policy.Context) *orchestrator.Dispatcher {
		d := orchestrator.NewDispatcher(market, rtctx)
		d.Locals[demoEchoCapabilityID] = func(_ context.Context, args value.Value) (value.Value, *value.Error) {
			return args, nil
		}
		d.MicroVMs[demoSandboxCapabilityID] = sandbox
		return d
	}

	eng, queue, err := buildEngine(cfg)
	if err != nil {
		return nil, err
	}
	if err := workflow.Register(ctx, eng, orch, queue); err != nil {
		return nil, fmt.Errorf("register plan workflow: %w", err)
	}

	evtBus, err := eventBus(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:       cfg,
		Market:       market,
		Graph:        graph,
		Arbiter:      arb,
		Orchestrator: orch,
		Engine:       eng,
		Bus:          evtBus,
		TaskQueue:    queue,
	}, nil
}

// demoEventStream names the Pulse stream CCOS_REDIS_ADDR-backed runs publish
// lifecycle events to; every CLI invocation currently shares one stream
// since the CLI drives a single goal per process.
const demoEventStream = "ccos.events"

// eventBus returns an in-process Bus by default, or a Pulse/Redis-backed
// distributed Bus when cfg.RedisAddr is set, so events survive across
// separate orchestrator and observer processes.
func eventBus(cfg config.Config) (bus.Bus, error) {
	if cfg.RedisAddr == "" {
		return bus.New(), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	client, err := pulseclient.New(pulseclient.Options{Redis: rdb})
	if err != nil {
		return nil, fmt.Errorf("build pulse client: %w", err)
	}
	return bus.NewDistributed(client, demoEventStream)
}

// stores builds the intent-graph and marketplace stores: Mongo-backed when
// cfg.MongoURI is set, in-memory otherwise.
func stores(ctx context.Context, cfg config.Config) (intentstore.Store, marketstore.Store, error) {
	if cfg.MongoURI == "" {
		return intentmem.New(), marketmem.New(), nil
	}
	client, err := mongoCollections(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	db := client.Database(cfg.MongoDBName)
	is := intentmongo.New(db.Collection("intents"), db.Collection("intent_edges"))
	ms := marketmongo.New(db.Collection("capabilities"))
	return is, ms, nil
}

func buildEngine(cfg config.Config) (engine.Engine, string, error) {
	switch cfg.Engine {
	case "temporal":
		eng, err := temporal.New(temporal.Options{HostPort: cfg.TemporalHostPort, TaskQueue: cfg.TemporalTaskQueue})
		if err != nil {
			return nil, "", fmt.Errorf("build temporal engine: %w", err)
		}
		return eng, cfg.TemporalTaskQueue, nil
	default:
		return inproc.New(), "ccos-inproc", nil
	}
}

func modelClient() model.Client {
	if endpoint := os.Getenv("CCOS_MODEL_ENDPOINT"); endpoint != "" {
		return model.NewRemoteClient(endpoint, os.Getenv("CCOS_MODEL_AUTH_ENV"))
	}
	return demoOracle()
}

// seedDemoCapabilities registers the local ccos.echo capability that the
// demo oracle's plan calls, so a goal run with no CCOS_MODEL_ENDPOINT
// configured still executes a capability end to end, and registers the
// microvm-dispatched ccos.sandbox-echo beside it, which that plan does not
// call.
func seedDemoCapabilities(ctx context.Context, market *marketplace.Marketplace) {
	_ = market.Register(ctx, marketplace.Manifest{
		ID:          demoEchoCapabilityID,
		Name:        "echo",
		Description: "returns its argument unchanged",
		Provider:    marketplace.Provider{Kind: marketplace.ProviderLocal, LocalName: demoEchoCapabilityID},
		Effects:     nil,
	})
	_ = market.Register(ctx, marketplace.Manifest{
		ID:          demoSandboxCapabilityID,
		Name:        "sandbox-echo",
		Description: "runs a trivial program inside the sandboxed microvm provider",
		Provider: marketplace.Provider{
			Kind:            marketplace.ProviderMicroVM,
			MicroVMProgram:  `(do (println "hello from the sandbox"))`,
			MicroVMLanguage: "rtfs",
		},
	})
}

// demoOracle returns a canned model.Client that drives the arbiter through
// a single-intent graph calling ccos.echo, so `ccos run --goal "..."`
// produces a real execution without a configured model endpoint. The
// response sequence must match the arbiter's exact call order: one
// natural-language-to-intent-graph completion, then, per intent, one
// delegation-decision completion followed by one plan-synthesis
// completion.
func demoOracle() model.Client {
	return &model.StubClient{
		Responses: []model.Response{
			{Text: `(do (intent "demo-goal" :goal "accomplish the requested goal"))`},
			{Text: `{"should_delegate": false, "reasoning": "a local capability already covers this goal", "required_capabilities": ["` + demoEchoCapabilityID + `"], "delegation_confidence": 0.05}`},
			{Text: `(do (call :` + demoEchoCapabilityID + ` "hello from ccos"))`},
		},
		Default: model.Response{
			Text: `{"should_delegate": false, "reasoning": "default demo response", "required_capabilities": [], "delegation_confidence": 0.05}`,
		},
	}
}

// ListCapabilities prints every registered capability id and provider kind.
func ListCapabilities(ctx context.Context, app *App, w io.Writer) error {
	manifests, err := app.Market.List(ctx)
	if err != nil {
		return err
	}
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%s\n", m.ID, m.Provider.Kind)
	}
	return nil
}

// RunGoal drives the full pipeline for goal: synthesize the intent graph,
// resolve and execute it under the requested policy, and print the causal
// chain.
func RunGoal(ctx context.Context, app *App, goal, policyMode string, allow []string, w io.Writer) error {
	rootID, err := app.Arbiter.NaturalLanguageToIntentGraph(ctx, goal)
	if err != nil {
		return fmt.Errorf("synthesize intent graph: %w", err)
	}
	fmt.Fprintf(w, "root intent: %s\n", rootID)

	mode := policyMode
	if mode == "" {
		mode = app.Config.PolicyMode
	}
	rtctx, err := runtimeContext(mode, allow)
	if err != nil {
		return err
	}

	_ = app.Bus.Publish(ctx, bus.Event{Type: bus.EventStarted, IntentID: rootID})
	res, err := app.Orchestrator.ExecuteIntentGraph(ctx, rootID, rtctx)
	if err != nil {
		_ = app.Bus.Publish(ctx, bus.Event{Type: bus.EventError, IntentID: rootID, Message: err.Error()})
		return fmt.Errorf("execute intent graph: %w", err)
	}
	_ = app.Bus.Publish(ctx, bus.Event{Type: bus.EventStopped, IntentID: rootID, Result: res.Success})

	fmt.Fprintf(w, "success: %v\n", res.Success)
	for _, a := range res.Actions {
		fmt.Fprintf(w, "  [%s] %s %s\n", a.Type, a.FunctionName, a.IntentID)
	}
	if res.Error != nil {
		fmt.Fprintf(w, "error: %s\n", res.Error.Error())
	}
	return nil
}

func runtimeContext(mode string, allow []string) (policy.Context, error) {
	switch mode {
	case "", "full":
		return policy.NewFull(), nil
	case "pure":
		return policy.NewPure(), nil
	case "controlled":
		return policy.NewControlled(allow...), nil
	default:
		return policy.Context{}, fmt.Errorf("unknown policy mode %q", mode)
	}
}

// mongoCollections dials cfg.MongoURI and returns the connected client; the
// intent graph and marketplace stores take their collections from it.
func mongoCollections(ctx context.Context, cfg config.Config) (*mongo.Client, error) {
	return mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
}
