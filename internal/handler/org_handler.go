package handler

import (
	"net/http"

	"ragspace-go/internal/model"
	"ragspace-go/internal/service"

	"github.com/gin-gonic/gin"
)

// OrgHandler 负责处理组织/部门/团队层级相关的 API 请求。
type OrgHandler struct {
	orgService *service.OrgService
}

// NewOrgHandler 创建一个新的 OrgHandler 实例。
func NewOrgHandler(orgService *service.OrgService) *OrgHandler {
	return &OrgHandler{orgService: orgService}
}

// CreateNamedRequest 是只带名称的创建请求体。
type CreateNamedRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddMemberRequest 定义了添加成员的请求体结构。
type AddMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role"`
}

func (r *AddMemberRequest) role() string {
	if r.Role == "" {
		return model.RoleMember
	}
	return r.Role
}

// CreateOrganization 创建组织。
func (h *OrgHandler) CreateOrganization(c *gin.Context) {
	var req CreateNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	user := currentUser(c)

	org, err := h.orgService.CreateOrganization(user.ID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, org)
}

// ListOrganizations 列出当前用户所属的组织。
func (h *OrgHandler) ListOrganizations(c *gin.Context) {
	user := currentUser(c)
	orgs, err := h.orgService.ListOrganizations(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, orgs)
}

// AddOrgMember 向组织添加成员。
func (h *OrgHandler) AddOrgMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	user := currentUser(c)

	if err := h.orgService.AddOrgMember(user.ID, c.Param("id"), req.UserID, req.role()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// ListOrgMembers 列出组织成员。
func (h *OrgHandler) ListOrgMembers(c *gin.Context) {
	user := currentUser(c)
	members, err := h.orgService.ListOrgMembers(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, members)
}

// CreateDepartment 在组织下创建部门。
func (h *OrgHandler) CreateDepartment(c *gin.Context) {
	var req CreateNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	user := currentUser(c)

	dept, err := h.orgService.CreateDepartment(user.ID, c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, dept)
}

// ListDepartments 列出组织下的部门。
func (h *OrgHandler) ListDepartments(c *gin.Context) {
	user := currentUser(c)
	depts, err := h.orgService.ListDepartments(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, depts)
}

// AddDeptMember 向部门添加成员。
func (h *OrgHandler) AddDeptMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	user := currentUser(c)

	if err := h.orgService.AddDeptMember(user.ID, c.Param("id"), req.UserID, req.role()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// CreateTeam 在部门下创建团队。
func (h *OrgHandler) CreateTeam(c *gin.Context) {
	var req CreateNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	user := currentUser(c)

	team, err := h.orgService.CreateTeam(user.ID, c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, team)
}

// ListTeams 列出部门下的团队。
func (h *OrgHandler) ListTeams(c *gin.Context) {
	user := currentUser(c)
	teams, err := h.orgService.ListTeams(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, teams)
}

// AddTeamMember 向团队添加成员。
func (h *OrgHandler) AddTeamMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	user := currentUser(c)

	if err := h.orgService.AddTeamMember(user.ID, c.Param("id"), req.UserID, req.role()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// ListTeamMembers 列出团队成员。
func (h *OrgHandler) ListTeamMembers(c *gin.Context) {
	user := currentUser(c)
	members, err := h.orgService.ListTeamMembers(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, members)
}
