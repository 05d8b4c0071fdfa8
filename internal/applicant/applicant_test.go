package applicant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	a := Applicant{Email: " Jieun@Example.com ", Row: 7}
	assert.Equal(t, "jieun@example.com", a.Key(), "email wins when present")

	a = Applicant{Row: 7}
	assert.Equal(t, "row:7", a.Key(), "row position is the fallback identity")

	a = Applicant{Name: " Kim Jieun ", Phone: "010-1234-5678"}
	assert.Equal(t, "contact:kim jieun:01012345678", a.Key(),
		"email-less direct submissions key on name and phone digits")

	b := Applicant{Name: "Lee Sumin", Phone: "010-9999-0000"}
	assert.NotEqual(t, a.Key(), b.Key(), "different people must not collide")
}

func TestHasChannel(t *testing.T) {
	assert.False(t, (&Applicant{}).HasChannel())
	assert.True(t, (&Applicant{BlogURL: "https://blog.naver.com/jieun"}).HasChannel())
}
