// Package server serves the built-in HTML test page used for manual,
// browser-based testing of the relay protocol.
package server

import (
	"fmt"
	"log"
	"net/http"
)

// TestPageHandler serves an HTML test client speaking the full event
// protocol: joining with a username, the presence sidebar, chat messages,
// and typing indicators.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>chatwire test client</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #layout { display: flex; gap: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            width: 500px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #users {
            border: 1px solid #ccc;
            height: 300px;
            width: 150px;
            padding: 10px;
            margin: 10px 0;
            background-color: #f4f4ff;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .joined { background-color: #d4edda; color: #155724; }
        .unjoined { background-color: #f8d7da; color: #721c24; }
        #typing { color: gray; font-style: italic; height: 1.2em; }
    </style>
</head>
<body>
    <h1>chatwire test client</h1>

    <div id="status" class="status unjoined">Not joined</div>

    <div>
        <input type="text" id="usernameInput" placeholder="Pick a username...">
        <button id="joinButton" onclick="join()">Join</button>
    </div>

    <div id="layout">
        <div>
            <div id="messages"></div>
            <div id="typing"></div>
            <input type="text" id="messageInput" placeholder="Type a message..." disabled>
            <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
        </div>
        <div id="users"><strong>Online</strong></div>
    </div>

    <script>
        let ws = null;
        let username = null;
        let typingTimer = null;
        const messagesDiv = document.getElementById('messages');
        const usersDiv = document.getElementById('users');
        const typingDiv = document.getElementById('typing');
        const messageInput = document.getElementById('messageInput');
        const usernameInput = document.getElementById('usernameInput');
        const statusDiv = document.getElementById('status');

        function addMessage(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'black';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function send(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: event, data: data}));
            }
        }

        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onmessage = function(e) {
                const frame = JSON.parse(e.data);
                switch (frame.event) {
                case 'userList':
                    usersDiv.innerHTML = '<strong>Online</strong>';
                    frame.data.users.forEach(function(u) {
                        const el = document.createElement('div');
                        el.textContent = u.username;
                        usersDiv.appendChild(el);
                    });
                    break;
                case 'chatMessage':
                    addMessage(frame.data.author + ': ' + frame.data.text);
                    break;
                case 'typing':
                    typingDiv.textContent = frame.data.username + ' is typing...';
                    break;
                case 'stopTyping':
                    typingDiv.textContent = '';
                    break;
                case 'usernameTaken':
                case 'invalidUsername':
                    addMessage(frame.data.reason, 'red');
                    break;
                }
            };
            ws.onclose = function() {
                statusDiv.textContent = 'Disconnected';
                statusDiv.className = 'status unjoined';
                messageInput.disabled = true;
                document.getElementById('sendButton').disabled = true;
                ws = null;
            };
        }

        function join() {
            username = usernameInput.value.trim();
            if (!username) { return; }
            if (!ws) { connect(); }
            const doJoin = function() { send('join', {username: username}); };
            if (ws.readyState === WebSocket.OPEN) { doJoin(); } else { ws.onopen = doJoin; }
            statusDiv.textContent = 'Joined as ' + username;
            statusDiv.className = 'status joined';
            messageInput.disabled = false;
            document.getElementById('sendButton').disabled = false;
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (!text) { return; }
            send('chatMessage', {author: username, text: text, timestamp: Date.now()});
            send('stopTyping', {username: username});
            messageInput.value = '';
        }

        messageInput.addEventListener('input', function() {
            send('typing', {username: username});
            clearTimeout(typingTimer);
            typingTimer = setTimeout(function() {
                send('stopTyping', {username: username});
            }, 1500);
        });

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
