package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/common"
)

// WhoAmI prints the current profile.
func (a *App) WhoAmI(_ context.Context) error {
	s := a.session.Session()
	if !s.IsAuthenticated {
		fmt.Fprintln(a.out, common.UserMessage(common.ErrNotAuthenticated))
		return nil
	}
	if s.User == nil {
		fmt.Fprintln(a.out, "Profile not loaded yet, try 'refresh'")
		return nil
	}
	printProfile(a.out, s.User)
	return nil
}

// Refresh reloads the profile from the server.
func (a *App) Refresh(ctx context.Context) error {
	p, err := a.session.RefreshProfile(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "Refresh unsuccessful:", common.UserMessage(err))
		return err
	}
	printProfile(a.out, p)
	return nil
}

// Status prints the session state.
func (a *App) Status(_ context.Context) error {
	s := a.session.Session()
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "mode\t%s\n", a.mode())
	fmt.Fprintf(tw, "authenticated\t%t\n", s.IsAuthenticated)
	if s.User != nil {
		fmt.Fprintf(tw, "user\t%s (%s)\n", s.User.Email, s.User.Role)
	}
	if s.LastError != "" {
		fmt.Fprintf(tw, "last error\t%s\n", s.LastError)
	}
	return tw.Flush()
}

// Diag prints recent login attempts, newest first, followed by the
// delivery counters of diagnostic reports and the time of the last
// session backup.
func (a *App) Diag(ctx context.Context) error {
	diag := a.session.Session().Diagnostics
	if len(diag) == 0 {
		fmt.Fprintln(a.out, "No login attempts recorded")
	} else {
		tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tSTRATEGY\tRETRIES\tRESULT\tSTEPS")
		for _, r := range diag {
			result := "ok"
			if !r.Success {
				result = "failed: " + r.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
				r.StartedAt.Local().Format(time.TimeOnly), r.Strategy, r.Retries, result, strings.Join(r.Labels(), ","))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if a.reports != nil {
		sent, failed := a.reports.Stats()
		fmt.Fprintf(a.out, "Diagnostic reports: %d sent, %d dropped\n", sent, failed)
	}
	if a.backups != nil {
		if b, ok := a.backups.ReadBackup(ctx, common.KeyAccessToken); ok {
			fmt.Fprintf(a.out, "Last session backup: %s\n", b.SavedAt.Local().Format(time.DateTime))
		}
	}
	return nil
}

// ClearError clears the last error.
func (a *App) ClearError(ctx context.Context) error {
	a.session.ClearError(ctx)
	return nil
}

func printProfile(w io.Writer, p *models.Profile) {
	fmt.Fprintf(w, "%s <%s>\n", p.FullName, p.Email)
	fmt.Fprintf(w, "id: %d, role: %s", p.ID, p.Role)
	if p.Phone != "" {
		fmt.Fprintf(w, ", phone: %s", p.Phone)
	}
	fmt.Fprintln(w)
}

func (a *App) status() string {
	s := ""
	if u := a.session.Session().User; u != nil {
		s = u.Email + " "
	}
	s += string(a.mode())
	return fmt.Sprintf("(%s)", s)
}
