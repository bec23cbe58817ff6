package render

import (
	"fmt"

	"github.com/starford/sowilo/pkg/config"
)

// ProfileLink is a labelled external link shown in the site header.
type ProfileLink struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// Profile is optional site metadata shared by every page.
type Profile struct {
	PageTitle    string        `yaml:"page_title"`
	Name         string        `yaml:"name"`
	Image        string        `yaml:"image"`
	Descriptions []string      `yaml:"descriptions"`
	Links        []ProfileLink `yaml:"links"`
	Footer       string        `yaml:"footer"`
}

// DefaultProfile returns the profile used when none is configured.
func DefaultProfile() Profile {
	var p Profile
	p.fill()
	return p
}

// LoadProfile reads a profile file, or returns the default for "".
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	var p Profile
	if err := config.Load(path, &p); err != nil {
		return Profile{}, fmt.Errorf("render: profile: %w", err)
	}
	p.fill()
	return p, nil
}

func (p *Profile) fill() {
	if p.PageTitle == "" {
		p.PageTitle = "Blog"
	}
	if p.Name == "" {
		p.Name = "anonymous"
	}
	if p.Descriptions == nil {
		p.Descriptions = []string{}
	}
	if p.Links == nil {
		p.Links = []ProfileLink{}
	}
}
