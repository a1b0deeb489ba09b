package forms

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// DateLayout is the wire format for all form dates.
const DateLayout = "2006-01-02"

var (
	amountRe = regexp.MustCompile(`^\d+[,.]?\d?$`)
	handleRe = regexp.MustCompile(`^[a-z0-9]+$`)
)

// amountRule accepts a positive number with at most one decimal place,
// comma or dot separated (e.g. "5.5", "5,5", "100"). Zero is rejected.
func amountRule(messageKey string) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil // Required handles empty.
		}
		if !amountRe.MatchString(s) {
			return errors.New(messageKey)
		}
		n, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil || n <= 0 {
			return errors.New(messageKey)
		}
		return nil
	})
}

// ParseAmount converts a value accepted by amountRule into a float64.
func ParseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

// Opportunity returns the field schema of the opportunity publish form.
// Changing the start date past a previously chosen end date clears the end
// date; the "no end date" toggle clears and disables it.
func Opportunity() Schema {
	return Schema{
		Name: "opportunity",
		Fields: []Field{
			{
				Name:     "name",
				LabelKey: "forms.opportunity.name",
				Rules: []validation.Rule{
					validation.Required.Error("errors.name-required"),
					validation.RuneLength(0, 100).Error("errors.name-too-long"),
				},
			},
			{
				Name:     "startDate",
				LabelKey: "forms.opportunity.start-date",
				Rules: []validation.Rule{
					validation.Required.Error("errors.start-date-required"),
					validation.Date(DateLayout).Error("errors.date-invalid"),
				},
			},
			{
				Name:     "endDate",
				LabelKey: "forms.opportunity.end-date",
				Rules: []validation.Rule{
					validation.Date(DateLayout).Error("errors.date-invalid"),
				},
			},
			{
				Name:     "hoursPerWeek",
				LabelKey: "forms.opportunity.hours",
				Rules: []validation.Rule{
					validation.Required.Error("errors.hours-required"),
					amountRule("errors.hours-invalid"),
				},
			},
			{
				Name:     "category",
				LabelKey: "forms.opportunity.category",
				Rules: []validation.Rule{
					validation.Required.Error("errors.category-required"),
					validation.RuneLength(0, 40).Error("errors.category-too-long"),
				},
			},
			{
				Name:     "website",
				LabelKey: "forms.opportunity.website",
				Rules: []validation.Rule{
					// Empty is valid; a non-empty value must parse as a URL.
					is.URL.Error("errors.website-invalid"),
				},
			},
			{
				Name:     "description",
				LabelKey: "forms.opportunity.description",
				Rules: []validation.Rule{
					validation.Required.Error("errors.description-required"),
					validation.RuneLength(0, 250).Error("errors.description-too-long"),
				},
			},
		},
		Resets: []ResetRule{
			{
				Trigger: "startDate",
				Target:  "endDate",
				When: func(v Values) bool {
					if v["endDate"] == "" {
						return false
					}
					start, err1 := time.Parse(DateLayout, v["startDate"])
					end, err2 := time.Parse(DateLayout, v["endDate"])
					if err1 != nil || err2 != nil {
						return false
					}
					return end.Before(start)
				},
			},
			{
				Trigger:       "noEndDate",
				Target:        "endDate",
				When:          func(v Values) bool { return v["noEndDate"] == "on" },
				ToggleDisable: true,
			},
		},
	}
}

// Goal returns the field schema of the reward-goal form.
func Goal() Schema {
	return Schema{
		Name: "goal",
		Fields: []Field{
			{
				Name:     "goal",
				LabelKey: "forms.goal.goal",
				Rules: []validation.Rule{
					validation.Required.Error("errors.goal-required"),
					amountRule("errors.goal-invalid"),
				},
			},
			{
				Name:     "goalDate",
				LabelKey: "forms.goal.date",
				Rules: []validation.Rule{
					validation.Date(DateLayout).Error("errors.date-invalid"),
				},
			},
		},
	}
}

// Profile returns the field schema of the profile-creation form.
// Handles are lowercased by the caller before use.
func Profile() Schema {
	return Schema{
		Name: "profile",
		Fields: []Field{
			{
				Name:     "handle",
				LabelKey: "forms.profile.handle",
				Rules: []validation.Rule{
					validation.Required.Error("errors.handle-required"),
					validation.RuneLength(5, 31).Error("errors.handle-length"),
					validation.Match(handleRe).Error("errors.handle-charset"),
				},
			},
		},
	}
}
