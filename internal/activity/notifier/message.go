package notifier

import (
	"fmt"
	"net/url"

	"github.com/smallbiznis/elrep/internal/activity/domain"
)

// Message renders an activity into the webhook notification payload: a
// plain-text summary plus contextual blocks. Dispatch is exhaustive over the
// activity kinds; an unknown kind is a programming error.
func Message(activity domain.Activity, httpOrigin string) (map[string]any, error) {
	base := activity.ActivityBase()

	orgLink := joinURL(httpOrigin, fmt.Sprintf("/support/orgs/%s", base.OrganizationID))
	orgContext := map[string]any{
		"type": "mrkdwn",
		"text": fmt.Sprintf(":flag-us: <%s|%s>", orgLink, base.OrganizationName),
	}
	userContext := map[string]any{
		"type": "mrkdwn",
		"text": fmt.Sprintf(":technologist: %s", base.UserKey),
	}
	timeContext := map[string]any{
		"type": "mrkdwn",
		"text": fmt.Sprintf(":clock3: <!date^%d^{date_short}, {time_secs}|%s>",
			activity.OccurredAt().Unix(), activity.OccurredAt().Format("2006-01-02T15:04:05Z07:00")),
	}
	electionContext := map[string]any{
		"type": "mrkdwn",
		"text": fmt.Sprintf(":microscope: <%s>", base.ElectionName),
	}

	switch a := activity.(type) {
	case domain.ElectionCreated:
		return summaryMessage(
			fmt.Sprintf("%s created an election: %s", base.UserKey, base.ElectionName),
			orgContext, timeContext, userContext,
		), nil

	case domain.ElectionDeleted:
		return summaryMessage(
			fmt.Sprintf("%s deleted an election: %s", base.UserKey, base.ElectionName),
			orgContext, timeContext, userContext,
		), nil

	case domain.FileUploaded:
		text := fmt.Sprintf("%s uploaded a %s file for %s", base.UserKey, a.FileType, base.ElectionName)
		if a.Error != nil {
			text = fmt.Sprintf("%s uploaded a %s file for %s, but processing failed: %s",
				base.UserKey, a.FileType, base.ElectionName, *a.Error)
		}
		return summaryMessage(text, orgContext, electionContext, timeContext, userContext), nil

	case domain.ResultsRecorded:
		jurisdictionLink := joinURL(httpOrigin, fmt.Sprintf("/support/jurisdictions/%s", a.JurisdictionID))
		jurisdictionContext := map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf(":classical_building: <%s|%s>", jurisdictionLink, a.JurisdictionName),
		}
		return summaryMessage(
			fmt.Sprintf("Results recorded for %s", a.JurisdictionName),
			orgContext, jurisdictionContext, electionContext, timeContext, userContext,
		), nil

	default:
		return nil, fmt.Errorf("message rendering not implemented for activity type: %s", activity.Name())
	}
}

func summaryMessage(text string, contexts ...map[string]any) map[string]any {
	return map[string]any{
		"text": text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*%s*", text)},
			},
			{
				"type":     "context",
				"elements": contexts,
			},
		},
	}
}

func joinURL(origin, path string) string {
	joined, err := url.JoinPath(origin, path)
	if err != nil {
		return origin + path
	}
	return joined
}
