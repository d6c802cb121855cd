// Package catalog exposes the configured courses and coupon codes.
package catalog

import (
	"fmt"
	"strings"
)

// Course is one purchasable offer.
type Course struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Price       int64  `yaml:"price"`
	// Questionnaire marks courses whose plan is personalized from the questionnaire.
	Questionnaire bool `yaml:"questionnaire"`
}

// Coupon grants a percentage discount on the listed courses, or on all
// courses when Courses is empty.
type Coupon struct {
	Code    string   `yaml:"code"`
	Percent int      `yaml:"percent"`
	Courses []string `yaml:"courses"`
	Active  bool     `yaml:"active"`
}

// Catalog is an immutable, ordered set of courses and coupons.
type Catalog struct {
	courses []Course
	byID    map[string]int
	coupons map[string]Coupon
}

// New validates courses and coupons and builds a Catalog.
func New(courses []Course, coupons []Coupon) (*Catalog, error) {
	c := &Catalog{
		courses: append([]Course(nil), courses...),
		byID:    make(map[string]int, len(courses)),
		coupons: make(map[string]Coupon, len(coupons)),
	}
	for i, course := range c.courses {
		id := strings.TrimSpace(course.ID)
		if id == "" {
			return nil, fmt.Errorf("course %d: id is required", i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("course %q: duplicate id", id)
		}
		if course.Price < 0 {
			return nil, fmt.Errorf("course %q: price must be >= 0", id)
		}
		c.courses[i].ID = id
		c.byID[id] = i
	}
	for _, cp := range coupons {
		code := normalizeCode(cp.Code)
		if code == "" {
			return nil, fmt.Errorf("coupon: code is required")
		}
		if cp.Percent <= 0 || cp.Percent > 100 {
			return nil, fmt.Errorf("coupon %q: percent must be in 1..100", cp.Code)
		}
		for _, id := range cp.Courses {
			if _, ok := c.byID[id]; !ok {
				return nil, fmt.Errorf("coupon %q: unknown course %q", cp.Code, id)
			}
		}
		cp.Code = code
		c.coupons[code] = cp
	}
	return c, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Courses returns the courses in configured order.
func (c *Catalog) Courses() []Course {
	return append([]Course(nil), c.courses...)
}

// Course looks up a course by id.
func (c *Catalog) Course(id string) (Course, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Course{}, false
	}
	return c.courses[i], true
}

// RequiresQuestionnaire reports whether an approved purchase of id needs the
// questionnaire before a plan is delivered. Unknown courses do not.
func (c *Catalog) RequiresQuestionnaire(id string) bool {
	course, ok := c.Course(id)
	return ok && course.Questionnaire
}

// Coupon returns the active coupon for code that applies to course.
func (c *Catalog) Coupon(code, course string) (Coupon, bool) {
	cp, ok := c.coupons[normalizeCode(code)]
	if !ok || !cp.Active {
		return Coupon{}, false
	}
	if len(cp.Courses) == 0 {
		return cp, true
	}
	for _, id := range cp.Courses {
		if id == course {
			return cp, true
		}
	}
	return Coupon{}, false
}

// Discount returns price reduced by percent, rounded down to a whole unit.
func Discount(price int64, percent int) int64 {
	if percent <= 0 {
		return price
	}
	if percent >= 100 {
		return 0
	}
	return price * int64(100-percent) / 100
}
