package task

import "regexp"

// Flag is the addressing mechanism (TaskFlag) used by list/stop/remove/
// start/... operations to select one or more tasks from the registry.
type Flag struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Group string `json:"group,omitempty"`
	// Mat, when true, treats Name/Group as a regular expression.
	Mat bool `json:"mat,omitempty"`
}

// Empty reports whether the flag carries no selector at all.
func (f Flag) Empty() bool {
	return f.ID == 0 && f.Name == "" && f.Group == ""
}

// Matches applies selector precedence: id (if non-zero) takes priority,
// then name (exact or regex per Mat), then group (exact or regex per Mat).
func (f Flag) Matches(t *Task) (bool, error) {
	if f.ID > 0 {
		return t.ID == f.ID, nil
	}
	if f.Name != "" {
		if !f.Mat {
			return t.Name == f.Name, nil
		}
		re, err := regexp.Compile(f.Name)
		if err != nil {
			return false, err
		}
		return re.MatchString(t.Name), nil
	}
	if f.Group != "" {
		if !f.Mat {
			return t.Group == f.Group, nil
		}
		re, err := regexp.Compile(f.Group)
		if err != nil {
			return false, err
		}
		return re.MatchString(t.Group), nil
	}
	return false, nil
}
