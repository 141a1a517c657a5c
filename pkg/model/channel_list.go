// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package model

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// ChannelList is a string list stored as a JSON column.
type ChannelList []string

// Value implements driver.Valuer.
func (c ChannelList) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(c))
	if err != nil {
		return nil, errors.Wrap(err, "marshaling channel list")
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *ChannelList) Scan(src interface{}) error {
	if src == nil {
		*c = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into ChannelList", src)
	}
	if len(b) == 0 {
		*c = nil
		return nil
	}
	return errors.Wrap(json.Unmarshal(b, (*[]string)(c)), "unmarshaling channel list")
}

// Contains reports whether name is in the list.
func (c ChannelList) Contains(name string) bool {
	for _, v := range c {
		if v == name {
			return true
		}
	}
	return false
}
