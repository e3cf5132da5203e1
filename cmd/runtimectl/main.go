// Command runtimectl is a small CLI wrapping pkg/runtimeclient for scripted
// smoke-testing of a deployment: it ensures a session against a running
// runtimed instance, pushes one file through the remote mirror, waits for
// a preview URL, and tears the session down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bolthost/runtime/pkg/runtimeclient"
)

func main() {
	var (
		baseURL    = flag.String("base-url", "http://localhost:8080", "runtimed base URL")
		chatID     = flag.String("chat-id", "", "chat id to ensure a session for (default: generates a draft id)")
		templateID = flag.String("template-id", "", "template id (default: server default template)")
		writePath  = flag.String("write-path", "", "virtual path to write a smoke-test file to, e.g. /home/project/README.md")
		writeBody  = flag.String("write-body", "smoke test\n", "content to write to --write-path")
		waitReady  = flag.Duration("wait-ready", 60*time.Second, "max time to wait for the preview to become ready")
		teardown   = flag.Bool("teardown", true, "delete the session before exiting")
	)
	flag.Parse()

	if err := run(*baseURL, *chatID, *templateID, *writePath, *writeBody, *waitReady, *teardown); err != nil {
		fmt.Fprintln(os.Stderr, "runtimectl:", err)
		os.Exit(1)
	}
}

func run(baseURL, chatID, templateID, writePath, writeBody string, waitReady time.Duration, teardown bool) error {
	ctx := context.Background()
	api := runtimeclient.NewHTTPClient(baseURL)

	sc := runtimeclient.NewSessionClient(api, 0)
	if teardown {
		defer func() {
			fmt.Println("tearing down session...")
			if err := sc.TeardownSession(context.Background()); err != nil {
				fmt.Fprintln(os.Stderr, "runtimectl: teardown failed:", err)
			}
		}()
	}

	created, err := sc.EnsureSession(ctx, chatID, templateID, false)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	fmt.Printf("session ready: composeId=%s status=%s deploymentStatus=%s\n",
		created.Session.ComposeID, created.Session.Status, created.DeploymentStatus)

	if writePath != "" {
		dirCache := runtimeclient.NewDirectoryCache(api, 0)
		coalescer := runtimeclient.NewWriteCoalescer(api, 0)
		mirror := runtimeclient.NewRemoteFilesMirror(api, dirCache, coalescer)
		mirror.SetToken(created.RuntimeToken)

		if err := mirror.RefreshFromRemote(ctx, true); err != nil {
			return fmt.Errorf("refresh remote tree: %w", err)
		}
		if err := mirror.SaveFile(ctx, writePath, writeBody); err != nil {
			return fmt.Errorf("save file %s: %w", writePath, err)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(writeBody), writePath)
	}

	if waitReady > 0 {
		if err := waitForReady(ctx, sc, waitReady); err != nil {
			return err
		}
	}

	fmt.Printf("previewUrl=%s\n", sc.State().PreviewURL)
	return nil
}

// waitForReady polls refreshSession until the session reports ready, the
// deadline elapses, or a forced error is observed by the projector.
func waitForReady(ctx context.Context, sc *runtimeclient.SessionClient, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var mem runtimeclient.ProjectorMemory

	for {
		if err := sc.RefreshSession(ctx); err != nil {
			return fmt.Errorf("refresh session: %w", err)
		}
		st := sc.State()

		result := runtimeclient.ProjectPreviewState(runtimeclient.ProjectorInput{
			SessionStatus:    st.Session.Status,
			DeploymentStatus: st.DeploymentStatus,
			RuntimeToken:     st.Token,
			PreviewURL:       st.PreviewURL,
			ComposeID:        st.Session.ComposeID,
			ChatID:           st.ChatID,
		}, mem, timeNow())
		mem = result.Memory

		switch result.Snapshot.State {
		case runtimeclient.PreviewReady:
			return nil
		case runtimeclient.PreviewError:
			return fmt.Errorf("deployment entered an error state: %s", result.Snapshot.Message)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s waiting for preview readiness (last state: %s)", timeout, result.Snapshot.State)
		}
		time.Sleep(2 * time.Second)
	}
}

func timeNow() time.Time { return time.Now() }
