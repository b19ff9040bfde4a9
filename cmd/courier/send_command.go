package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/payload"
	"courier/internal/push"
)

type sendOptions struct {
	configurations []string
	tokensFile     string

	body         string
	title        string
	titleLocKey  string
	titleLocArgs []string
	locKey       string
	locArgs      []string
	actionLocKey string
	launchImage  string
	badge        int
	sound        string
	category     string
	threadID     string
	contentAvail bool
	mutable      bool
	data         []string
	dataJSON     []string
	topic        string
	priority     int
	expiration   time.Duration
	pushType     string
	collapseID   string
	generateID   bool
	metricsBind  string
	jsonOutput   bool
}

type sendResult struct {
	Configuration string `json:"configuration"`
	Recipient     string `json:"recipient"`
	Status        int    `json:"status"`
	Reason        string `json:"reason,omitempty"`
	APNsID        string `json:"apns_id,omitempty"`
	Body          string `json:"body,omitempty"`
}

func newSendCommand(ctx *commandContext) *cobra.Command {
	opts := &sendOptions{badge: -1}

	cmd := &cobra.Command{
		Use:   "send [device-token...]",
		Short: "Send a notification to one or more device tokens",
		Long: `Send a notification to one or more device tokens.

Every recipient gets exactly one result, in the order given. A recipient whose
send fails at the transport level is retried once on a fresh stream; if that
also fails, the remaining recipients are reported with the same failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			recipients, err := collectRecipients(args, opts.tokensFile)
			if err != nil {
				return err
			}
			items, err := opts.items()
			if err != nil {
				return err
			}
			names := opts.configurations
			if len(names) == 0 {
				if cfg.Push.DefaultConfiguration == "" {
					return errors.New("no configuration selected (use --configuration or set push.default_configuration)")
				}
				names = []string{cfg.Push.DefaultConfiguration}
			}

			return ctx.withRuntime(cmd, opts.metricsBind, func(rt *runtime) error {
				jobs := make([]push.Job, 0, len(names))
				for _, name := range names {
					entry, _ := cfg.Lookup(name)
					note, err := opts.notification(cfg, entry)
					if err != nil {
						return err
					}
					jobs = append(jobs, push.Job{
						Configuration: name,
						Recipients:    recipients,
						Notification:  note,
						Items:         items,
					})
				}

				outcomes := rt.engine.PushAll(cmd.Context(), jobs, cfg.Push.Concurrency)
				results := flattenResults(jobs, outcomes)
				if opts.jsonOutput {
					if err := writeJSON(cmd, results); err != nil {
						return err
					}
				} else {
					renderSendResults(cmd, results)
				}

				failed := 0
				for _, r := range results {
					if r.Status != 200 {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d notifications failed", failed, len(results))
				}
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.configurations, "configuration", "C", nil, "Configuration name (repeat to fan out; defaults to push.default_configuration)")
	flags.StringVarP(&opts.tokensFile, "tokens-file", "f", "", "File with one device token per line")
	flags.StringVarP(&opts.body, "body", "b", "", "Alert body")
	flags.StringVarP(&opts.title, "title", "t", "", "Alert title")
	flags.StringVar(&opts.titleLocKey, "title-loc-key", "", "Localized alert title key")
	flags.StringArrayVar(&opts.titleLocArgs, "title-loc-arg", nil, "Localized alert title argument (repeatable)")
	flags.StringVar(&opts.locKey, "loc-key", "", "Localized alert body key")
	flags.StringArrayVar(&opts.locArgs, "loc-arg", nil, "Localized alert body argument (repeatable)")
	flags.StringVar(&opts.actionLocKey, "action-loc-key", "", "Localized action button key")
	flags.StringVar(&opts.launchImage, "launch-image", "", "Launch image file name")
	flags.IntVar(&opts.badge, "badge", -1, "Badge count (omit to leave unchanged)")
	flags.StringVar(&opts.sound, "sound", "", "Sound name")
	flags.StringVar(&opts.category, "category", "", "Notification category")
	flags.StringVar(&opts.threadID, "thread-id", "", "Thread identifier")
	flags.BoolVar(&opts.contentAvail, "content-available", false, "Mark as a background update")
	flags.BoolVar(&opts.mutable, "mutable-content", false, "Allow a notification service extension to modify the content")
	flags.StringArrayVar(&opts.data, "data", nil, "Custom top-level key=value string (repeatable)")
	flags.StringArrayVar(&opts.dataJSON, "data-json", nil, "Custom top-level key=<json> value (repeatable)")
	flags.StringVar(&opts.topic, "topic", "", "apns-topic (defaults to the configuration's or push.topic)")
	flags.IntVar(&opts.priority, "priority", 0, "apns-priority, 10 or 5 (defaults to push.priority)")
	flags.DurationVar(&opts.expiration, "expiration", -1, "Keep undeliverable notifications for this long (0 = deliver once or drop)")
	flags.StringVar(&opts.pushType, "push-type", "", "apns-push-type (defaults to push.push_type)")
	flags.StringVar(&opts.collapseID, "collapse-id", "", "apns-collapse-id (defaults to push.collapse_id)")
	flags.BoolVar(&opts.generateID, "generate-id", false, "Send a fresh apns-id with each request")
	flags.StringVar(&opts.metricsBind, "metrics-bind", "", "Expose Prometheus metrics on host:port while sending")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

func collectRecipients(args []string, tokensFile string) ([]string, error) {
	recipients := make([]string, 0, len(args))
	for _, arg := range args {
		if tok := strings.TrimSpace(arg); tok != "" {
			recipients = append(recipients, tok)
		}
	}
	if path := strings.TrimSpace(tokensFile); path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return nil, fmt.Errorf("resolve tokens file: %w", err)
		}
		f, err := os.Open(expanded)
		if err != nil {
			return nil, fmt.Errorf("open tokens file: %w", err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			recipients = append(recipients, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read tokens file: %w", err)
		}
	}
	if len(recipients) == 0 {
		return nil, errors.New("no device tokens given")
	}
	return recipients, nil
}

func (o *sendOptions) items() ([]payload.Item, error) {
	var items []payload.Item
	if o.body != "" {
		items = append(items, payload.AlertBody(o.body))
	}
	if o.title != "" {
		items = append(items, payload.AlertTitle(o.title))
	}
	if o.titleLocKey != "" {
		items = append(items, payload.AlertTitleLoc(o.titleLocKey, o.titleLocArgs...))
	}
	if o.locKey != "" {
		items = append(items, payload.AlertLoc(o.locKey, o.locArgs...))
	}
	if o.actionLocKey != "" {
		items = append(items, payload.AlertActionLoc(o.actionLocKey))
	}
	if o.launchImage != "" {
		items = append(items, payload.AlertLaunchImage(o.launchImage))
	}
	if o.badge >= 0 {
		items = append(items, payload.Badge(o.badge))
	}
	if o.sound != "" {
		items = append(items, payload.Sound(o.sound))
	}
	if o.contentAvail {
		items = append(items, payload.ContentAvailable())
	}
	if o.category != "" {
		items = append(items, payload.Category(o.category))
	}
	if o.threadID != "" {
		items = append(items, payload.ThreadID(o.threadID))
	}
	if o.mutable {
		items = append(items, payload.MutableContent())
	}
	for _, raw := range o.data {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("--data %q must be key=value", raw)
		}
		items = append(items, payload.Custom(strings.TrimSpace(key), payload.String(value)))
	}
	for _, raw := range o.dataJSON {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("--data-json %q must be key=<json>", raw)
		}
		var decoded any
		dec := json.NewDecoder(strings.NewReader(value))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return nil, fmt.Errorf("--data-json %s: %w", key, err)
		}
		items = append(items, payload.Custom(strings.TrimSpace(key), valueFromJSON(decoded)))
	}
	return items, nil
}

// valueFromJSON converts decoded JSON into a payload value. Object keys are
// sorted since Go maps carry no order.
func valueFromJSON(v any) payload.Value {
	switch typed := v.(type) {
	case nil:
		return payload.Null()
	case bool:
		return payload.Bool(typed)
	case string:
		return payload.String(typed)
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return payload.Int(i)
		}
		f, _ := typed.Float64()
		return payload.Float(f)
	case []any:
		values := make([]payload.Value, len(typed))
		for i, elem := range typed {
			values[i] = valueFromJSON(elem)
		}
		return payload.Array(values...)
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		obj := payload.NewObject()
		for _, key := range keys {
			obj.Set(key, valueFromJSON(typed[key]))
		}
		return payload.ObjectValue(obj)
	default:
		return payload.String(fmt.Sprint(typed))
	}
}

func (o *sendOptions) notification(cfg *config.Config, entry config.APNs) (push.Notification, error) {
	note := push.Notification{
		Topic:      firstNonEmpty(o.topic, entry.Topic, cfg.Push.Topic),
		CollapseID: firstNonEmpty(o.collapseID, cfg.Push.CollapseID),
		GenerateID: o.generateID || cfg.Push.GenerateIDs,
	}

	priority := o.priority
	if priority == 0 {
		priority = cfg.Push.Priority
	}
	switch push.Priority(priority) {
	case push.PriorityImmediate, push.PriorityBackground:
		note.Priority = push.Priority(priority)
	default:
		return push.Notification{}, fmt.Errorf("--priority must be 10 or 5, got %d", priority)
	}

	pushType, err := push.ParsePushType(firstNonEmpty(o.pushType, cfg.Push.PushType))
	if err != nil {
		return push.Notification{}, err
	}
	note.PushType = pushType

	switch {
	case o.expiration > 0:
		note.Expiration = push.ExpireAfter(o.expiration)
	case o.expiration == 0:
		note.Expiration = push.ExpireImmediately()
	case cfg.Push.ExpirationSeconds > 0:
		note.Expiration = push.ExpireAfter(time.Duration(cfg.Push.ExpirationSeconds) * time.Second)
	}
	if len(note.CollapseID) > 64 {
		return push.Notification{}, errors.New("--collapse-id must be at most 64 bytes")
	}
	return note, nil
}

func flattenResults(jobs []push.Job, outcomes [][]push.Response) []sendResult {
	var results []sendResult
	for i, job := range jobs {
		responses := outcomes[i]
		aggregate := len(responses) != len(job.Recipients)
		for j, resp := range responses {
			recipient := "*"
			if !aggregate {
				recipient = job.Recipients[j]
			}
			result := sendResult{
				Configuration: job.Configuration,
				Recipient:     recipient,
				Status:        resp.Status,
				APNsID:        resp.APNsID,
			}
			if reason, ok := resp.Reason(); ok {
				result.Reason = reason.Reason
			} else if !resp.OK() {
				result.Body = resp.String()
				if result.Body == "" && resp.Err != nil {
					result.Body = resp.Err.Error()
				}
			}
			results = append(results, result)
		}
	}
	return results
}

func renderSendResults(cmd *cobra.Command, results []sendResult) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(results))
	delivered := 0
	for _, r := range results {
		status := strconv.Itoa(r.Status)
		if r.Status == push.StatusTransportFailure {
			status = "-"
		}
		if r.Status == 200 {
			delivered++
		}
		detail := r.Reason
		if detail == "" {
			detail = r.Body
		}
		rows = append(rows, []string{r.Configuration, shortToken(r.Recipient), status, detail, r.APNsID})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Configuration", "Recipient", "Status", "Detail", "APNs ID"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))

	kind := statusOK
	switch {
	case delivered == 0:
		kind = statusError
	case delivered < len(results):
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Delivered", kind, fmt.Sprintf("%d of %d", delivered, len(results)), shouldColorize(out)))
}

func shortToken(tok string) string {
	if len(tok) <= 20 {
		return tok
	}
	return tok[:8] + "…" + tok[len(tok)-8:]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
