package health

import "strings"

// recommend pattern-matches issue text per category into actionable
// suggestions, with a standing message when everything is healthy.
func recommend(sys, res, tel, svc Report) []string {
	recs := []string{}

	if sys.Status >= Warning {
		if issuesMention(sys.Issues, "CPU") {
			recs = append(recs, "Close unnecessary applications or processes to reduce CPU usage")
		}
		if issuesMention(sys.Issues, "memory") {
			recs = append(recs, "Free up memory by closing unused applications or increasing system RAM")
		}
		if issuesMention(sys.Issues, "disk") {
			recs = append(recs, "Clean up disk space or expand storage capacity")
		}
	}

	if res.Status >= Warning {
		recs = append(recs, "Download and load more resources to restore serving capacity")
		if issuesMention(res.Issues, "error state") {
			recs = append(recs, "Inspect resource error states and retry the failed operations")
		}
	}

	if tel.Status == Warning {
		recs = append(recs, "Address resource bottlenecks to improve performance")
		if issuesMention(tel.Issues, "temperature") {
			recs = append(recs, "Improve system cooling to reduce CPU temperature")
		}
	}

	if svc.Status == Warning {
		if issuesMention(svc.Issues, "memory") {
			recs = append(recs, "Restart the service to free up memory")
		}
		if issuesMention(svc.Issues, "response") {
			recs = append(recs, "Check system resources and network connectivity")
		}
	}

	if sys.Status == Healthy && res.Status == Healthy && tel.Status == Healthy && svc.Status == Healthy {
		recs = append(recs, "System is operating normally. Continue regular monitoring.")
	}
	return recs
}

func issuesMention(issues []string, substr string) bool {
	for _, issue := range issues {
		if strings.Contains(issue, substr) {
			return true
		}
	}
	return false
}
