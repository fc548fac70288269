package service

import "github.com/ivanoskov/ibadah_bot/internal/model"

const recapDays = 7

// DayCount is the number of records on one date, split by category.
type DayCount struct {
	Date      model.Date
	Mandatory int
	Voluntary int
}

func (d DayCount) Total() int { return d.Mandatory + d.Voluntary }

// Summary aggregates records over an inclusive date window.
type Summary struct {
	From      model.Date
	To        model.Date
	Days      []DayCount // one entry per day, zero days included
	Mandatory int
	Voluntary int
}

func (s *Summary) Total() int { return s.Mandatory + s.Voluntary }

// Summarize counts records dated within [from, to]. Records outside the
// window are ignored.
func Summarize(records []model.Ibadah, from, to model.Date) *Summary {
	if to.Before(from) {
		from, to = to, from
	}

	summary := &Summary{From: from, To: to}
	index := make(map[string]int)
	for d, i := from, 0; !d.After(to); d, i = d.AddDays(1), i+1 {
		summary.Days = append(summary.Days, DayCount{Date: d})
		index[d.String()] = i
	}

	for _, r := range records {
		i, ok := index[r.Date.String()]
		if !ok {
			continue
		}
		switch r.Category {
		case model.CategoryMandatory:
			summary.Days[i].Mandatory++
			summary.Mandatory++
		case model.CategoryVoluntary:
			summary.Days[i].Voluntary++
			summary.Voluntary++
		}
	}
	return summary
}

// WeeklySummary summarizes the local records for the last seven days
// ending today.
func (s *IbadahStore) WeeklySummary() *Summary {
	today := s.today()
	return Summarize(s.Records(), today.AddDays(-(recapDays - 1)), today)
}
