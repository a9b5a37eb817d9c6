package artifact

import (
	"sort"

	"github.com/tidwall/gjson"

	"github.com/NREL/COMPASS/internal/model"
)

// trackerTotals is the scraper's per-jurisdiction aggregate event. Every
// jurisdiction entry carries one; it is stored both as the item's totals and
// as a regular event row.
const trackerTotals = "tracker_totals"

// decodeUsage decodes the usage artifact. The top level holds the run totals
// plus one object per jurisdiction, keyed by jurisdiction name; each
// jurisdiction holds its own totals plus one object per named tracker event.
func decodeUsage(name string, data []byte) (*model.Usage, error) {
	if !gjson.ValidBytes(data) {
		return nil, &MalformedArtifactError{Artifact: name, Reason: "invalid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &MalformedArtifactError{Artifact: name, Reason: "top-level value is not an object"}
	}

	total := root.Get("total_time_seconds")
	if !total.Exists() {
		return nil, &MalformedArtifactError{Artifact: name, Reason: `required field "total_time_seconds" is absent`}
	}
	if total.Type != gjson.Number {
		return nil, &MalformedArtifactError{Artifact: name, Reason: `field "total_time_seconds" must be a number`}
	}

	usage := &model.Usage{
		TotalTimeSeconds: total.Float(),
		TotalTime:        root.Get("total_time").String(),
	}

	var decodeErr error
	root.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "total_time_seconds", "total_time":
			return true
		}
		if !value.IsObject() {
			decodeErr = &MalformedArtifactError{
				Artifact: name,
				Reason:   "entry " + key.String() + " is not a jurisdiction object",
			}
			return false
		}
		item, err := decodeUsageItem(name, key.String(), value)
		if err != nil {
			decodeErr = err
			return false
		}
		usage.Items = append(usage.Items, *item)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	// JSON object order is not meaningful; keep items stable by name.
	sort.Slice(usage.Items, func(i, j int) bool { return usage.Items[i].Name < usage.Items[j].Name })

	return usage, nil
}

func decodeUsageItem(name, jurisdiction string, obj gjson.Result) (*model.UsageItem, error) {
	total := obj.Get("total_time_seconds")
	if !total.Exists() || total.Type != gjson.Number {
		return nil, &MalformedArtifactError{
			Artifact: name,
			Reason:   "jurisdiction " + jurisdiction + ` is missing "total_time_seconds"`,
		}
	}

	item := &model.UsageItem{
		Name:             jurisdiction,
		TotalTimeSeconds: total.Float(),
		TotalTime:        obj.Get("total_time").String(),
	}

	var decodeErr error
	obj.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "total_time_seconds", "total_time":
			return true
		}
		if !value.IsObject() {
			decodeErr = &MalformedArtifactError{
				Artifact: name,
				Reason:   "event " + key.String() + " of " + jurisdiction + " is not an object",
			}
			return false
		}
		event, err := decodeUsageEvent(name, jurisdiction, key.String(), value)
		if err != nil {
			decodeErr = err
			return false
		}
		item.Events = append(item.Events, *event)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	sort.Slice(item.Events, func(i, j int) bool { return item.Events[i].Name < item.Events[j].Name })

	found := false
	for _, ev := range item.Events {
		if ev.Name == trackerTotals {
			item.Totals = ev
			found = true
			break
		}
	}
	if !found {
		return nil, &MalformedArtifactError{
			Artifact: name,
			Reason:   "jurisdiction " + jurisdiction + ` is missing the "tracker_totals" event`,
		}
	}

	return item, nil
}

func decodeUsageEvent(name, jurisdiction, event string, obj gjson.Result) (*model.UsageEvent, error) {
	ev := &model.UsageEvent{Name: event}
	for _, field := range []struct {
		key string
		dst *int64
	}{
		{"requests", &ev.Requests},
		{"prompt_tokens", &ev.PromptTokens},
		{"response_tokens", &ev.ResponseTokens},
	} {
		v := obj.Get(field.key)
		if !v.Exists() || v.Type != gjson.Number {
			return nil, &MalformedArtifactError{
				Artifact: name,
				Reason:   "event " + event + " of " + jurisdiction + ` is missing "` + field.key + `"`,
			}
		}
		*field.dst = v.Int()
	}
	return ev, nil
}
