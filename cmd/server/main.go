package main

import (
	"log"
	"time"

	"whatsapp-crm/internal/api"
	"whatsapp-crm/internal/campaign"
	"whatsapp-crm/internal/config"
	"whatsapp-crm/internal/database"
	"whatsapp-crm/internal/gateway"
	"whatsapp-crm/internal/media"
	"whatsapp-crm/internal/store"
	"whatsapp-crm/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	database.InitGorm(cfg)

	hub := ws.NewHub()
	go hub.Run()

	messages := store.NewMessageStore(database.GormDB, hub)
	campaigns := store.NewCampaignStore(database.GormDB)
	instances := store.NewInstanceStore(database.GormDB)
	templates := store.NewTemplateStore(database.GormDB)

	preparer := media.NewPreparer(cfg.FFmpegBin, cfg.MediaDir, cfg.MediaPublicBase)
	dispatcher := gateway.NewDispatcher(cfg.GraphHost, time.Duration(cfg.GatewayTimeoutSec)*time.Second)
	batcher := campaign.NewDispatcher(campaigns, instances, templates, messages, dispatcher, hub,
		cfg.CampaignBatchSize, time.Duration(cfg.CampaignSendDelayMS)*time.Millisecond)

	sendHandler := api.NewSendHandler(instances, templates, messages, preparer, dispatcher)
	campaignHandler := api.NewCampaignHandler(campaigns, batcher)
	templateHandler := api.NewTemplateHandler(templates, instances, dispatcher.Cloud)
	instanceHandler := api.NewInstanceHandler(instances)
	chatHandler := api.NewChatHandler(messages)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Team-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Served media (audio notes, attachments)
	r.Static("/media", cfg.MediaDir)

	// Realtime events, one socket per team
	r.GET("/ws", func(c *gin.Context) {
		teamID := c.Query("team_id")
		if teamID == "" {
			teamID = c.GetHeader(api.TeamIDHeader)
		}
		if teamID == "" {
			c.JSON(401, gin.H{"error": "missing team id"})
			return
		}
		hub.ServeWs(c.Writer, c.Request, teamID)
	})

	apiGroup := r.Group("/api")
	apiGroup.Use(api.TeamAuth())
	{
		// Outbound Message Routes
		apiGroup.POST("/messages/text", sendHandler.SendText)
		apiGroup.POST("/messages/media", sendHandler.SendMedia)
		apiGroup.POST("/messages/audio", sendHandler.SendAudio)
		apiGroup.POST("/messages/template", sendHandler.SendTemplate)

		// Campaign Routes
		apiGroup.POST("/campaigns", campaignHandler.CreateCampaign)
		apiGroup.GET("/campaigns/:id", campaignHandler.GetCampaign)
		apiGroup.POST("/campaigns/:id/dispatch", campaignHandler.DispatchCampaign)

		// Template Routes
		apiGroup.GET("/templates", templateHandler.GetTemplates)
		apiGroup.POST("/templates/sync", templateHandler.SyncTemplates)

		// Instance Routes
		apiGroup.POST("/instances", instanceHandler.CreateInstance)
		apiGroup.GET("/instances", instanceHandler.GetInstances)

		// Chat Routes
		apiGroup.GET("/chats", chatHandler.GetChats)
		apiGroup.GET("/chats/:id/messages", chatHandler.GetChatMessages)
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
