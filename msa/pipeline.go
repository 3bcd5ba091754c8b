package msa

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/devlogin/msa-cli/tui"
)

// DefaultClientID is the Azure application the device-code grant is
// requested for.
const DefaultClientID = "bfcbedc1-f14e-441f-a136-15aec874e6c2"

// scope requested from the identity provider. offline_access yields the
// refresh token used by the cached fast path.
const oauthScope = "XboxLive.signin offline_access"

const (
	notifyTitle = "Microsoft account login"
	errorTitle  = "Microsoft account login - error"
)

// maxWorkers bounds the pool that runs stage network IO off the caller's
// goroutine.
const maxWorkers = 4

// Options configures a login Flow. Zero values fall back to production
// defaults; only Executor has no default worth guessing wrong.
type Options struct {
	ClientID  string
	Endpoints Endpoints
	Executor  *Executor

	// Store is the credential cache. nil disables caching entirely.
	Store TokenStore
	// StoreRefreshToken controls whether the refresh token is persisted
	// alongside the service token after a fresh login.
	StoreRefreshToken bool

	Sink   tui.Sink
	Logger *zap.Logger
}

// Flow drives the token-exchange pipeline: device-code acquisition,
// authorization polling, the Xbox exchanges, the Minecraft token, and the
// profile fetch — with a cached fast path that can skip most of it.
//
// A Flow runs one login and is not reusable. Login blocks the caller until
// a terminal state is reached; stage IO runs on a bounded worker pool.
type Flow struct {
	opts Options
	exec *Executor
	sink tui.Sink
	log  *zap.Logger

	state PipelineState

	sem  chan struct{} // worker slots
	gate chan error    // one outcome per dispatched stage, reused sequentially

	cancelled atomic.Bool
	prompt    tui.Handle
}

// NewFlow builds a Flow from opts.
func NewFlow(opts Options) (*Flow, error) {
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID
	}
	if opts.Endpoints == (Endpoints{}) {
		opts.Endpoints = DefaultEndpoints()
	}
	if opts.Executor == nil {
		exec, err := NewExecutor(nil)
		if err != nil {
			return nil, err
		}
		opts.Executor = exec
	}
	if opts.Sink == nil {
		opts.Sink = tui.NoopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Flow{
		opts: opts,
		exec: opts.Executor,
		sink: opts.Sink,
		log:  opts.Logger,
		sem:  make(chan struct{}, maxWorkers),
		gate: make(chan error, 1),
	}, nil
}

// Login runs the pipeline to a terminal state and returns the profile on
// success. The caller gets its own copy of the profile; all token material
// held by the flow is cleared before Login returns, on every path.
func (f *Flow) Login(ctx context.Context) (Profile, error) {
	defer f.cleanup()

	// CacheCheck: a cached service token that still validates against the
	// profile service short-circuits everything.
	cached := f.loadCache()
	if cached != nil && cached.MinecraftToken != "" {
		f.state.MinecraftToken = cached.MinecraftToken
		if err := f.await(ctx, f.stageProfile); err == nil {
			f.log.Info("cached token is valid", zap.String("player", f.state.Profile.Name))
			return *f.state.Profile, nil
		} else {
			f.log.Info("cached token is invalid",
				zap.String("kind", KindInvalidCache.String()), zap.Error(err))
			f.state.MinecraftToken = ""
		}
	}

	// RefreshAttempt: a cached refresh token skips the device prompt. Its
	// failure is non-fatal; the flow falls through to the full device flow.
	if cached != nil && cached.RefreshToken != "" {
		f.state.RefreshToken = cached.RefreshToken
		if err := f.await(ctx, f.stageRefresh); err == nil {
			f.log.Info("identity token refreshed from cache")
			if err := f.exchangeAndValidate(ctx); err != nil {
				return Profile{}, f.fail(err)
			}
			return *f.state.Profile, nil
		} else {
			f.log.Info("refresh token rejected, falling back to device flow", zap.Error(err))
			f.state.RefreshToken = ""
		}
	}

	// DeviceFlow: the full six-stage sequence.
	if err := f.await(ctx, f.stageDeviceCode); err != nil {
		return Profile{}, f.fail(err)
	}
	if err := f.await(ctx, f.stagePoll); err != nil {
		return Profile{}, f.fail(err)
	}
	if err := f.exchangeAndValidate(ctx); err != nil {
		return Profile{}, f.fail(err)
	}

	f.saveCache()
	return *f.state.Profile, nil
}

// exchangeAndValidate runs stages 3-6: both Xbox exchanges, the Minecraft
// token, and the profile fetch that proves entitlement.
func (f *Flow) exchangeAndValidate(ctx context.Context) error {
	if err := f.await(ctx, f.stageXBL); err != nil {
		return err
	}
	if err := f.await(ctx, f.stageXSTS); err != nil {
		return err
	}
	if err := f.await(ctx, f.stageMinecraft); err != nil {
		return err
	}
	return f.await(ctx, f.stageProfile)
}

// await dispatches fn onto the worker pool and blocks until its outcome
// arrives on the gate. Exactly one send per dispatch; stages are strictly
// sequential, so the single gate channel is safe to reuse. The orchestrator
// never abandons an in-flight stage — cancellation reaches the stage
// through ctx and comes back as its outcome.
func (f *Flow) await(ctx context.Context, fn func(context.Context) error) error {
	f.sem <- struct{}{}
	go func() {
		defer func() { <-f.sem }()
		f.gate <- fn(ctx)
	}()
	return <-f.gate
}

// fail logs the underlying cause, relays a human-readable message through
// the sink, and normalizes err to a *FlowError. Every terminal failure
// passes through here exactly once.
func (f *Flow) fail(err error) error {
	var fe *FlowError
	if !errors.As(err, &fe) {
		fe = &FlowError{Kind: KindTransport, Stage: "login", Err: err}
	}
	f.log.Error("login failed",
		zap.String("stage", fe.Stage),
		zap.String("kind", fe.Kind.String()),
		zap.Error(err),
	)
	f.sink.Notify(errorTitle, userMessage(fe))
	return fe
}

// userMessage renders a FlowError for humans. Provider codes are never
// swallowed; for the XSTS stage they are the primary diagnostic signal.
func userMessage(fe *FlowError) string {
	switch fe.Kind {
	case KindCancelled:
		return "Login cancelled."
	case KindExpired:
		return "The device code expired before the login was approved. Please try again."
	case KindNotEntitled:
		return "This account does not own Minecraft."
	case KindProvider:
		msg := fmt.Sprintf("Could not acquire %s.", fe.Stage)
		if fe.Code != 0 {
			msg += fmt.Sprintf("<br>Error code: %d, message: %s", fe.Code, fe.Message)
			if hint := XErrHint(fe.Code); hint != "" {
				msg += "<br>" + hint + "."
			}
			msg += `<br>See <a href="https://wiki.vg/Microsoft_Authentication_Scheme#Authenticate_with_XSTS">the error code list</a> for details.`
		} else if fe.Message != "" {
			msg += "<br>" + fe.Message
		}
		return msg
	default:
		return fmt.Sprintf("Could not acquire %s (%v).", fe.Stage, fe.Err)
	}
}

// loadCache reads the persisted credential, called at most once per flow.
func (f *Flow) loadCache() *CachedCredential {
	if f.opts.Store == nil {
		return nil
	}
	cred, err := f.opts.Store.Load()
	if err != nil {
		f.log.Debug("no cached credential", zap.Error(err))
		return nil
	}
	return cred
}

// saveCache persists the credential after a fresh successful login, called
// at most once per flow. Save failure is a warning, never a flow failure.
func (f *Flow) saveCache() {
	if f.opts.Store == nil {
		return
	}
	cred := &CachedCredential{MinecraftToken: f.state.MinecraftToken}
	if f.opts.StoreRefreshToken {
		cred.RefreshToken = f.state.RefreshToken
	}
	if err := f.opts.Store.Save(cred); err != nil {
		f.log.Warn("could not save credential cache", zap.Error(err))
		f.sink.Notify(notifyTitle, "Warning: failed to save the login for next time.")
	}
}

// cleanup closes any open prompt and clears all secret material from the
// shared state. Runs on every exit path.
func (f *Flow) cleanup() {
	if f.prompt != nil {
		f.prompt.Dismiss()
		f.prompt = nil
	}
	f.state.Reset()
}
