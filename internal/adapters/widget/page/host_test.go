package page_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/stellar-site/internal/adapters/storage/memory"
	"github.com/bnema/stellar-site/internal/adapters/widget/page"
	"github.com/bnema/stellar-site/internal/application"
	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleScheduler struct{}

func (idleScheduler) AfterFunc(time.Duration, func()) func() bool {
	return func() bool { return true }
}

func verbs(cmds []domain.WidgetCommand) []domain.Verb {
	out := make([]domain.Verb, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, cmd.Verb)
	}
	return out
}

func TestHostDropsCommandsWithoutEntryPoint(t *testing.T) {
	t.Parallel()

	host := page.NewHost()
	host.Dispatch(domain.WidgetCommand{Verb: domain.VerbShow})
	assert.Empty(t, host.Drain())

	host.InstallQueue()
	host.Dispatch(domain.WidgetCommand{Verb: domain.VerbShow})
	host.Dispatch(domain.WidgetCommand{Verb: domain.VerbHide})
	assert.Equal(t, []domain.Verb{domain.VerbShow, domain.VerbHide}, verbs(host.Drain()))
	assert.Empty(t, host.Drain())
}

func TestHostOutboxIsBounded(t *testing.T) {
	t.Parallel()

	host := page.NewHost()
	host.InstallQueue()
	for range page.MaxOutbox + 3 {
		host.Dispatch(domain.WidgetCommand{Verb: domain.VerbUpdate})
	}

	assert.Len(t, host.Drain(), page.MaxOutbox)
	assert.Equal(t, 3, host.Dropped())
}

func TestHostScriptOutcomeRunsCallbacksOnce(t *testing.T) {
	t.Parallel()

	host := page.NewHost()
	require.ErrorIs(t, host.ScriptLoaded(), page.ErrNoPendingScript)

	loads := 0
	var failure error
	host.InjectScript("https://widget.intercom.io/widget/app-123", ports.ScriptCallbacks{
		OnLoad:  func() { loads++ },
		OnError: func(err error) { failure = err },
	})
	assert.True(t, host.Boot().Pending)

	require.NoError(t, host.ScriptLoaded())
	require.ErrorIs(t, host.ScriptFailed(errors.New("late")), page.ErrNoPendingScript)
	assert.Equal(t, 1, loads)
	assert.NoError(t, failure)
	assert.False(t, host.Boot().Pending)
}

func TestHostShutdownHooksFireOnce(t *testing.T) {
	t.Parallel()

	host := page.NewHost()
	calls := 0
	host.OnShutdownComplete(func() { calls++ })

	host.ShutdownComplete()
	host.ShutdownComplete()
	assert.Equal(t, 1, calls)
}

func TestHostDrivesTabLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	host := page.NewHost()
	tab := application.NewTab(ctx, application.TabConfig{
		AppID:      "app-123",
		APIBase:    "https://api-iam.intercom.io",
		InitialURL: "https://stellar.test/home",
	}, application.TabDeps{
		Storage:   memory.NewVisitors().ForVisitor("v-1"),
		Host:      host,
		Scheduler: idleScheduler{},
	})

	require.True(t, tab.Start(ctx))
	boot := host.Boot()
	assert.Equal(t, "https://widget.intercom.io/widget/app-123", boot.ScriptSrc)
	assert.Equal(t, "app-123", boot.Settings.AppID)
	assert.Equal(t, "#intercom-custom-launcher", boot.Settings.CustomLauncherSelector)
	assert.True(t, boot.Pending)

	_, err := tab.Reconciler.Identify(ctx, domain.PartialIdentity{Email: "A@B.com", Name: "A"})
	require.NoError(t, err)

	require.NoError(t, host.ScriptLoaded())
	assert.Equal(t, domain.StateReady, tab.Bootstrap.State())
	assert.Equal(t,
		[]domain.Verb{domain.VerbOnShow, domain.VerbOnMessageSent, domain.VerbUpdate},
		verbs(host.Drain()),
	)

	require.NoError(t, tab.Reconciler.Reset(ctx))
	assert.Equal(t, []domain.Verb{domain.VerbShutdown}, verbs(host.Drain()))

	host.ShutdownComplete()
	cmds := host.Drain()
	require.Equal(t, []domain.Verb{domain.VerbBoot}, verbs(cmds))
	booted, ok := cmds[0].Args[0].(domain.Settings)
	require.True(t, ok)
	assert.Empty(t, booted.UserID)
	assert.Equal(t, "app-123", booted.AppID)
}

func TestHostStaysEmptyWithoutAppID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	host := page.NewHost()
	tab := application.NewTab(ctx, application.TabConfig{InitialURL: "https://stellar.test/"}, application.TabDeps{
		Storage:   memory.NewVisitors().ForVisitor("v-1"),
		Host:      host,
		Scheduler: idleScheduler{},
	})

	assert.False(t, tab.Start(ctx))
	boot := host.Boot()
	assert.Empty(t, boot.ScriptSrc)
	assert.False(t, boot.Pending)
	assert.False(t, host.HasEntryPoint())
	assert.Equal(t, domain.StateNotLoaded, tab.Bootstrap.State())
}
