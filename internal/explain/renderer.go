package explain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pale-fire/logdoctor/internal/engine/detect"
	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/timeline"
)

// Renderer is the default Explainer and Fixer: a fixed template over the
// evidence, keyed by the error's category. No model, no network.
type Renderer struct{}

// NewRenderer returns the template renderer.
func NewRenderer() *Renderer { return &Renderer{} }

var (
	_ Explainer = (*Renderer)(nil)
	_ Fixer     = (*Renderer)(nil)
)

// knowledge is what the renderer knows about one error category.
type knowledge struct {
	meaning string
	causes  []string
	impact  string
	fixes   []fix
}

type fix struct {
	title string
	steps string
}

var categoryKnowledge = map[string]knowledge{
	"connection": {
		meaning: "The service tried to reach a network dependency and the connection failed: either the remote side refused it, reset it mid-flight, or the route was unavailable.",
		causes: []string{
			"the dependency is down, restarting, or not yet listening",
			"a connection pool or file-descriptor limit was exhausted on either side",
			"a firewall, security group, or service mesh rejected the connection",
			"the target host or port is misconfigured",
		},
		impact: "Requests that need the dependency fail immediately. If callers retry aggressively, the failure can amplify into a thundering herd once the dependency returns.",
		fixes: []fix{
			{"Confirm the dependency is listening", "Check the target process is up and bound to the expected host and port, and that it accepts connections from this service's network."},
			{"Inspect connection pool limits", "Compare active connections against the dependency's configured maximum; exhausted pools refuse new connections even when the process is healthy."},
			{"Add bounded retries with backoff", "Retry the connection a small, capped number of times with exponential backoff so transient restarts do not surface as user-facing errors."},
		},
	},
	"timeout": {
		meaning: "An operation did not complete within its deadline and was abandoned.",
		causes: []string{
			"the downstream operation is genuinely slow (large query, lock contention, cold cache)",
			"the deadline is tighter than the operation's normal latency",
			"network congestion or packet loss between the services",
		},
		impact: "Work is wasted at the point of timeout and often retried, multiplying load on an already slow component.",
		fixes: []fix{
			{"Measure where the time goes", "Trace or log the slow operation's phases to find whether the latency is in the network, the queue, or the work itself."},
			{"Align deadlines along the call chain", "Give callers slightly longer deadlines than their callees so the failure surfaces where the work happens, not upstream of it."},
			{"Cap retry amplification", "Retrying timeouts without a budget multiplies load; use retry budgets or circuit breaking."},
		},
	},
	"memory": {
		meaning: "The process ran out of memory or came close enough that the allocator or kernel intervened.",
		causes: []string{
			"a leak: memory grows steadily with uptime",
			"an unbounded buffer, cache, or query result held in memory",
			"the container or host limit is simply too small for the workload",
		},
		impact: "The process is killed or degrades unpredictably; co-located services can be evicted with it.",
		fixes: []fix{
			{"Capture a heap profile at high water", "Profile the process near its peak to see which allocation sites hold the memory."},
			{"Bound the largest buffers", "Put explicit caps on caches, batch sizes, and query result sets so one request cannot absorb the whole budget."},
			{"Right-size the limit", "If usage is legitimate, raise the container/host memory limit to leave headroom above the observed peak."},
		},
	},
	"permission": {
		meaning: "The operation was rejected by an authorization or permission check.",
		causes: []string{
			"expired or rotated credentials still cached by the service",
			"a role or policy missing the specific permission",
			"file-system ownership or mode bits tighter than the process user",
		},
		impact: "The affected operation fails deterministically until the credential or policy is fixed; retries do not help.",
		fixes: []fix{
			{"Check credential freshness", "Verify the token, key, or certificate the service presented is current and was reloaded after the last rotation."},
			{"Diff the required permission", "Compare the exact permission named in the message against the role or policy attached to this service."},
		},
	},
	"not_found": {
		meaning: "The service asked for something that does not exist at the location it used: a file, route, record, or key.",
		causes: []string{
			"a path or identifier built from stale configuration",
			"a resource deleted or renamed while still referenced",
			"a deploy ordering issue: the consumer shipped before the resource",
		},
		impact: "Usually contained to the requests that reference the missing resource, but systematic 404s can hide a misrouted integration.",
		fixes: []fix{
			{"Verify the identifier at the source", "Log or inspect the exact path/id being requested and confirm it exists where the service looks for it."},
			{"Check deploy ordering", "If the resource is created by another component, make sure it deploys before its consumers."},
		},
	},
	"null_reference": {
		meaning: "Code dereferenced a value that was absent: a nil pointer, null, or undefined reached a place that assumed presence.",
		causes: []string{
			"an error path that returns early without populating a result",
			"optional data treated as required after a schema or API change",
			"a race: the value read before its writer finished",
		},
		impact: "The request that hit the nil crashes or errors; if the nil lives in shared state, many requests follow.",
		fixes: []fix{
			{"Find the producing site", "Walk the stack trace to the assignment that should have populated the value and check its error handling."},
			{"Guard the boundary", "Validate presence where the optional data enters the system rather than where it is used."},
		},
	},
	"other": {
		meaning: "The message does not match a known failure shape; read it together with the surrounding timeline.",
		causes: []string{
			"an application-specific failure surfaced by this service",
		},
		impact: "Depends on the operation that logged it; the surrounding events indicate the blast radius.",
		fixes: []fix{
			{"Search for the first occurrence", "Find when this error first appeared and what changed around that time: deploys, config, traffic."},
			{"Correlate across services", "Check whether other services logged errors in the same window; a shared cause often shows up as a cluster."},
		},
	},
}

func knowledgeFor(message string) knowledge {
	if k, ok := categoryKnowledge[detect.Categorize(message)]; ok {
		return k
	}
	return categoryKnowledge["other"]
}

// Explain renders the plain-English report for the evidence.
func (r *Renderer) Explain(_ context.Context, b EvidenceBundle) (string, error) {
	ev := b.Event
	know := knowledgeFor(ev.Message)

	var w strings.Builder
	id := ev.ErrorID
	if id == "" {
		id = ev.ID
	}
	fmt.Fprintf(&w, "%s · %s in %s at %s\n", id, ev.Severity, ev.Service,
		ev.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&w, "%s\n", ev.Message)

	w.WriteString("\nWhat it means\n")
	fmt.Fprintf(&w, "  %s\n", know.meaning)

	w.WriteString("\nWhy it typically happens\n")
	for _, cause := range know.causes {
		fmt.Fprintf(&w, "  - %s\n", cause)
	}

	w.WriteString("\nImpact\n")
	fmt.Fprintf(&w, "  %s\n", know.impact)

	if g := b.Group; g != nil {
		w.WriteString("\nRelated errors\n")
		fmt.Fprintf(&w, "  Group %s: %d events across %s over %s (confidence %.0f%%).\n",
			g.ID, len(g.EventIDs), strings.Join(g.Origins, ", "),
			g.Span().Round(time.Millisecond), g.Confidence*100)
		fmt.Fprintf(&w, "  Shared signature: %s\n", g.Signature)
	}

	if len(b.Timeline) > 0 {
		w.WriteString("\nWhat led up to it\n")
		for _, line := range b.Timeline {
			marker := " "
			if line.Severity >= model.SeverityError {
				marker = "!"
			}
			fmt.Fprintf(&w, "  %s %s %-5s %s: %s\n", marker,
				line.Timestamp.UTC().Format("15:04:05.000"),
				line.Severity, line.Service, line.Message)
		}
		inc := timeline.Analyze(b.fullView())
		if inc.Cascade {
			fmt.Fprintf(&w, "  Errors crossed %d services in this window; the earliest is %s.\n",
				len(inc.Services), inc.FirstErrorID)
		}
	}
	return w.String(), nil
}

// SuggestFix renders actionable suggestions for the evidence.
func (r *Renderer) SuggestFix(_ context.Context, b EvidenceBundle) (string, error) {
	ev := b.Event
	know := knowledgeFor(ev.Message)

	var w strings.Builder
	id := ev.ErrorID
	if id == "" {
		id = ev.ID
	}
	fmt.Fprintf(&w, "Suggested fixes for %s (%s: %s)\n", id, ev.Service, ev.Message)
	for i, f := range know.fixes {
		fmt.Fprintf(&w, "\n%d. %s\n   %s\n", i+1, f.title, f.steps)
	}
	if b.Group != nil && len(b.Group.Origins) > 1 {
		fmt.Fprintf(&w, "\nThis error is grouped with failures in %s; fixing the earliest error in the group usually clears the rest.\n",
			strings.Join(b.Group.Origins, ", "))
	}
	return w.String(), nil
}
