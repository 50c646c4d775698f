package natsadapter

import "strings"

// Subjects used by placekeeper.
const (
	SubjectPlaceCreated  = "placekeeper.places.created"
	subjectJobsPrefix    = "placekeeper.jobs."
	subjectTriggerPrefix = "placekeeper.triggers."
)

// JobCompletedSubject is where a finished run of job is announced.
func JobCompletedSubject(job string) string {
	return subjectJobsPrefix + job + ".completed"
}

// TriggerSubject is where a manual run of job is requested.
func TriggerSubject(job string) string {
	return subjectTriggerPrefix + job
}

// JobFromTriggerSubject extracts the job name from a trigger subject.
func JobFromTriggerSubject(subject string) (string, bool) {
	job, ok := strings.CutPrefix(subject, subjectTriggerPrefix)
	if !ok || job == "" || strings.Contains(job, ".") {
		return "", false
	}
	return job, true
}
