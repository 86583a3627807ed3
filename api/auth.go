package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type activeRequest struct {
	IsActive *bool `json:"is_active"`
}

func login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	info, err := models.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, info, "login successful")
}

func logout(c *gin.Context) {
	if _, err := models.Logout(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, nil, "logged out")
}

func me(c *gin.Context) {
	info, err := models.Me(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, info)
}

func listUsers(c *gin.Context) {
	users, err := models.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, users)
}

func getUser(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	user, err := models.GetUser(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, user)
}

func createUser(c *gin.Context) {
	var input models.NewUser
	if !bindJSON(c, &input) {
		return
	}
	user, err := models.CreateUser(c.Request.Context(), &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, user, "user created")
}

func updateUser(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewUser
	if !bindJSON(c, &input) {
		return
	}
	user, err := models.UpdateUser(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, user, "user updated")
}

func toggleUserActive(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var req activeRequest
	if !bindActive(c, &req) {
		return
	}
	user, err := models.ToggleUserActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, user)
}

func deleteUser(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	user, err := models.DeleteUser(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, user, "user deleted")
}

func changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := models.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, user, "password changed")
}

func getCompany(c *gin.Context) {
	company, err := models.GetCompany(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, company)
}

func listCompanies(c *gin.Context) {
	companies, err := models.ListTenantCompanies(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, companies)
}

func createCompany(c *gin.Context) {
	var input models.NewCompany
	if !bindJSON(c, &input) {
		return
	}
	company, err := models.CreateCompany(c.Request.Context(), &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, company, "company created")
}

func updateCompany(c *gin.Context) {
	var input models.NewCompany
	if !bindJSON(c, &input) {
		return
	}
	company, err := models.UpdateCompany(c.Request.Context(), &input)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, company, "company updated")
}
