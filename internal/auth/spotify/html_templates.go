package spotify

// LoginSuccessHTML is served on the loopback callback after a validated
// authorization redirect. The window closes itself shortly after.
const LoginSuccessHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Login Successful - Spotify Rework</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #121212;
            color: #ffffff;
        }
        .container {
            text-align: center;
            background: #181818;
            padding: 2.5rem;
            border-radius: 12px;
            max-width: 420px;
            width: 100%;
        }
        h1 { color: #1DB954; margin-bottom: 1rem; }
        p { color: #b3b3b3; line-height: 1.5; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Success!</h1>
        <p>You have been logged in successfully.</p>
        <p>You can close this window and return to the app.</p>
    </div>
    <script>setTimeout(function() { window.close(); }, 2000);</script>
</body>
</html>`

// LoginFailureHTML is served when the callback carries a provider error or an
// invalid state parameter. {{ERROR_MESSAGE}} is replaced before serving.
const LoginFailureHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Login Failed - Spotify Rework</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #121212;
            color: #ffffff;
        }
        .container {
            text-align: center;
            background: #181818;
            padding: 2.5rem;
            border-radius: 12px;
            max-width: 420px;
            width: 100%;
        }
        h1 { color: #e74c3c; margin-bottom: 1rem; }
        p { color: #b3b3b3; line-height: 1.5; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authentication Failed</h1>
        <p>{{ERROR_MESSAGE}}</p>
        <p>You can close this window.</p>
    </div>
</body>
</html>`

// BadRequestHTML is served for callback requests missing both a code and an
// error parameter. The listener keeps waiting after serving it.
const BadRequestHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Bad Request</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 50px; background: #121212; color: #b3b3b3;">
    <h1>Bad Request</h1>
    <p>The callback request is missing required parameters.</p>
</body>
</html>`
