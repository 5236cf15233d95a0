package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// StarRating is a review's star rating. The seed file writes it either as a number or as a string.
type StarRating string

// UnmarshalJSON accepts a JSON number or string.
func (s *StarRating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""

		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("stars: %w", err)
		}

		*s = StarRating(str)

		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("stars must be a number or string: %w", err)
	}

	*s = StarRating(strconv.FormatFloat(num, 'f', -1, 64))

	return nil
}

// SeedReview is one entry of the reviews.json seed file.
type SeedReview struct {
	Professor string     `json:"professor"`
	Review    string     `json:"review"`
	Subject   string     `json:"subject"`
	Stars     StarRating `json:"stars"`
}
