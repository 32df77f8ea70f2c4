package controller

import (
	"chatsync-be/internal/dto"
	"chatsync-be/internal/pkg/serverutils"
	"chatsync-be/internal/service"
	"chatsync-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	GetMessages(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/chat/v1")
	h.Use(auth)
	h.Get("", c.List)
	h.Post("", c.Create)
	h.Get(":id/messages", c.GetMessages)
}

func (c *chatController) Create(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIdFromContext(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	res, err := c.service.CreateChat(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create chat", res))
}

func (c *chatController) List(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIdFromContext(ctx)
	if err != nil {
		return err
	}

	var req dto.ListChatsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return apperror.Validation("invalid query parameters")
	}

	res, err := c.service.ListChats(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all chats", res))
}

func (c *chatController) GetMessages(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIdFromContext(ctx)
	if err != nil {
		return err
	}

	chatId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperror.Validation("invalid chat id")
	}

	var req dto.GetMessagesRequest
	if err := ctx.QueryParser(&req); err != nil {
		return apperror.Validation("invalid query parameters")
	}
	req.ChatId = chatId

	res, err := c.service.GetMessages(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}
