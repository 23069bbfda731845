package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/kydenul/lotto"
)

// parseNumbers parses "3,11,19" or "3 11 19" into a sorted list.
func parseNumbers(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no numbers in %q", s)
	}

	numbers := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", f, err)
		}
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	return numbers, nil
}

// parseTickets parses tickets separated by ';', e.g. "1,2,3,4,5,6,7;8,9,10,11,12,13,14".
func parseTickets(s string) ([]lotto.Ticket, error) {
	var tickets []lotto.Ticket
	for part := range strings.SplitSeq(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		numbers, err := parseNumbers(part)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, lotto.Ticket(numbers))
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("no tickets in %q", s)
	}
	return tickets, nil
}

func joinNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprintf("%2d", n)
	}
	return strings.Join(parts, " ")
}
