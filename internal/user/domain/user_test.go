package domain_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/agora-social/agora/internal/user/domain"
	"github.com/agora-social/agora/pkg/errors"
)

type UserDomainTestSuite struct {
	suite.Suite
}

func (suite *UserDomainTestSuite) TestNewUser() {
	// Act
	user, err := suite.newUser("gopher_01")

	// Assert
	suite.Require().NoError(err)
	suite.Equal(domain.RoleUser, user.Role)
	suite.Equal(domain.StatusActive, user.Status)
	suite.Zero(user.PostCount)
}

func (suite *UserDomainTestSuite) TestNewUser_InvalidUsername() {
	for _, name := range []string{"go", "has space", "way_too_long_for_a_username_here"} {
		_, err := suite.newUser(name)
		suite.True(errors.IsBadRequest(err), name)
	}
}

func (suite *UserDomainTestSuite) TestUpdateColumns() {
	// Arrange
	bio := "writes Go"
	banned := domain.StatusBanned
	u := domain.Update{Bio: &bio, Status: &banned}

	// Act
	cols := u.Columns()
	user := &domain.User{Bio: "old", Status: domain.StatusActive}
	u.Apply(user)

	// Assert
	suite.Equal(map[string]interface{}{"bio": "writes Go", "status": domain.StatusBanned}, cols)
	suite.Equal("writes Go", user.Bio)
	suite.Equal(domain.StatusBanned, user.Status)
}

func (suite *UserDomainTestSuite) TestConditionMatches() {
	user := &domain.User{Username: "gopher", Role: domain.RoleAdmin, Status: domain.StatusActive}

	suite.True(domain.Condition{}.Matches(user))
	suite.True(domain.Condition{Username: "gopher", Role: domain.RoleAdmin}.Matches(user))
	suite.False(domain.Condition{Status: domain.StatusBanned}.Matches(user))
}

func (suite *UserDomainTestSuite) TestCounterField() {
	f, err := domain.ParseCounterField("followerCount")
	suite.Require().NoError(err)
	suite.Equal("follower_count", f.Column())

	_, err = domain.ParseCounterField("role")
	suite.Error(err)
}

func (suite *UserDomainTestSuite) newUser(username string) (*domain.User, error) {
	return domain.NewUser("0198ad01-bf97-7407-bdbb-61f38e962685", username, "Rob", "Pike")
}

func TestUserDomainTestSuite(t *testing.T) {
	suite.Run(t, new(UserDomainTestSuite))
}
